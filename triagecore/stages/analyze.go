// Package stages provides the five triage workflow stages: classification,
// summarization, memory context, reply generation and the escalation verdict.
package stages

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sonukumar047/email-assistant/triagecore/config"
	"github.com/sonukumar047/email-assistant/triagecore/llm"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/state"
	"github.com/sonukumar047/email-assistant/triagecore/workflow"
)

// Stage names, also used as dependency references.
const (
	StageAnalyze       = "analyze"
	StageSummarize     = "summarize"
	StageMemory        = "memory"
	StageGenerateReply = "generate_reply"
	StageDecide        = "decide"
)

const classifyIntentPrompt = `You are an email classification expert. Classify the intent into exactly one category:
- complaint: Customer is unhappy or reporting an issue
- request: Customer needs help or wants something done
- feedback: Customer is sharing opinions or suggestions
- inquiry: Customer is asking for information

Respond with ONLY the category name in lowercase.`

const classifySentimentPrompt = `Analyze the sentiment of this email. Respond with one word:
- positive: Happy, satisfied, grateful tone
- neutral: Factual, informative tone
- negative: Frustrated, angry, disappointed tone`

// NewAnalyzeStage builds the entry stage. Intent classification and sentiment
// analysis depend only on the body, so both model calls run concurrently and
// join before the merged result is returned.
//
// An out-of-vocabulary intent is coerced to "inquiry" with confidence 0.5
// instead of failing the run; a valid intent carries confidence 0.95. An
// unrecognized sentiment falls back to "neutral".
func NewAnalyzeStage(cfg *config.Config, gen llm.TextGenerator, logger logging.Logger) workflow.Stage {
	log := logger.Bind("stage", StageAnalyze)
	params := llm.Params{Model: cfg.Model, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	return workflow.Stage{
		Name: StageAnalyze,
		Run: func(ctx context.Context, snap *state.EmailState) (workflow.Mutation, error) {
			var rawIntent, rawSentiment string

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				text, err := gen.Generate(gctx, llm.Request{
					System: classifyIntentPrompt,
					User:   fmt.Sprintf("Email: %s", snap.Body),
				}, params)
				if err != nil {
					return fmt.Errorf("intent classification: %w", err)
				}
				rawIntent = strings.ToLower(strings.TrimSpace(text))
				return nil
			})
			g.Go(func() error {
				text, err := gen.Generate(gctx, llm.Request{
					System: classifySentimentPrompt,
					User:   fmt.Sprintf("Email: %s", snap.Body),
				}, params)
				if err != nil {
					return fmt.Errorf("sentiment analysis: %w", err)
				}
				rawSentiment = strings.ToLower(strings.TrimSpace(text))
				return nil
			})
			if err := g.Wait(); err != nil {
				return nil, err
			}

			confidence := 0.95
			intent, err := state.IntentFromString(rawIntent)
			if err != nil {
				vErr := &ValidationError{Field: "intent", Value: rawIntent}
				log.Warn("invalid_intent_defaulted",
					"raw_intent", rawIntent,
					"error", vErr.Error(),
				)
				intent = state.IntentInquiry
				confidence = 0.5
			}

			sentiment, err := state.SentimentFromString(rawSentiment)
			if err != nil {
				log.Warn("invalid_sentiment_defaulted", "raw_sentiment", rawSentiment)
				sentiment = state.SentimentNeutral
			}

			log.Info("analysis_completed",
				"run_id", snap.RunID,
				"intent", string(intent),
				"sentiment", string(sentiment),
				"confidence", confidence,
			)

			return func(st *state.EmailState) {
				st.Intent = intent
				st.Sentiment = sentiment
				st.Confidence = state.FloatPtr(confidence)
			}, nil
		},
	}
}
