package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/sonukumar047/email-assistant/triagecore/config"
	"github.com/sonukumar047/email-assistant/triagecore/llm"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/state"
	"github.com/sonukumar047/email-assistant/triagecore/workflow"
)

const summarizePrompt = `Summarize the email in 2-3 concise sentences.
Focus on:
1. The main point or request
2. Key details mentioned
3. The sender's tone (urgent, polite, frustrated, etc.)`

// NewSummarizeStage builds the summarization stage. It reads only the
// subject and body, so it runs in parallel with the memory stage.
func NewSummarizeStage(cfg *config.Config, gen llm.TextGenerator, logger logging.Logger) workflow.Stage {
	log := logger.Bind("stage", StageSummarize)
	params := llm.Params{Model: cfg.Model, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	return workflow.Stage{
		Name:     StageSummarize,
		Requires: []string{StageAnalyze},
		Run: func(ctx context.Context, snap *state.EmailState) (workflow.Mutation, error) {
			text, err := gen.Generate(ctx, llm.Request{
				System: summarizePrompt,
				User:   fmt.Sprintf("Email:\nSubject: %s\nBody: %s", snap.Subject, snap.Body),
			}, params)
			if err != nil {
				return nil, fmt.Errorf("summarization: %w", err)
			}
			summary := strings.TrimSpace(text)

			log.Info("summary_generated",
				"run_id", snap.RunID,
				"preview", truncate(summary, 80),
			)

			return func(st *state.EmailState) {
				st.Summary = state.StrPtr(summary)
			}, nil
		},
	}
}

// truncate shortens s to at most n runes for log previews.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
