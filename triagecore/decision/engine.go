// Package decision implements the multi-criteria escalation verdict.
//
// Four criteria are evaluated in a fixed sequence with overwrite semantics:
// a later criterion that matches replaces the reason set by an earlier one,
// so the final reason reflects repeat-customer over keywords over negative
// sentiment. The severity check (criterion 4) runs only when none of the
// first three matched.
package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/sonukumar047/email-assistant/triagecore/config"
	"github.com/sonukumar047/email-assistant/triagecore/history"
	"github.com/sonukumar047/email-assistant/triagecore/llm"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/state"
)

const severitySystemPrompt = `Analyze if this complaint requires escalation to senior support.
Escalate if:
- Very strong negative emotions
- Mentions legal action or regulatory complaints
- Complex technical issue beyond basic support
- Multiple failures or problems mentioned

Respond with only 'yes' or 'no'`

// maxReasonKeywords bounds how many matched keywords appear in the reason.
const maxReasonKeywords = 3

// Engine evaluates the escalation criteria against a finished triage state.
type Engine struct {
	cfg    *config.Config
	store  *history.Store
	gen    llm.TextGenerator
	logger logging.Logger
}

// NewEngine creates a decision engine. The store provides the prior
// interaction count; the generator serves the severity check.
func NewEngine(cfg *config.Config, store *history.Store, gen llm.TextGenerator, logger logging.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  store,
		gen:    gen,
		logger: logger.Bind("component", "decision"),
	}
}

// Decide returns the escalation verdict and reason for a state that has
// completed classification and reply generation. The interaction count is
// read before the current interaction is saved, so it reflects prior
// correspondence only. Only a severity-check generation failure is returned
// as an error.
func (e *Engine) Decide(ctx context.Context, st *state.EmailState) (bool, string, error) {
	body := strings.ToLower(st.Body)

	escalate := false
	reason := ""

	// Criterion 1: negative sentiment complaints.
	if st.Intent == state.IntentComplaint && st.Sentiment == state.SentimentNegative {
		escalate = true
		reason = "Negative sentiment detected in complaint"
	}

	// Criterion 2: urgent keywords in the body.
	matched := make([]string, 0, maxReasonKeywords)
	for _, kw := range e.cfg.EscalationKeywords {
		if strings.Contains(body, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	if len(matched) > 0 {
		escalate = true
		if len(matched) > maxReasonKeywords {
			matched = matched[:maxReasonKeywords]
		}
		reason = fmt.Sprintf("Urgent keywords detected: %s", strings.Join(matched, ", "))
	}

	// Criterion 3: repeat customer.
	count := e.store.Count(st.From)
	if count >= e.cfg.RepeatThreshold {
		escalate = true
		reason = fmt.Sprintf("Repeat customer (%d previous interactions)", count)
	}

	// Criterion 4: model severity check, only for complaints that nothing
	// above already escalated.
	if st.Intent == state.IntentComplaint && !escalate {
		response, err := e.gen.Generate(ctx, llm.Request{
			System: severitySystemPrompt,
			User:   fmt.Sprintf("Email: %s", st.Body),
		}, llm.Params{
			Model:       e.cfg.Model,
			Temperature: e.cfg.Temperature,
			MaxTokens:   e.cfg.MaxTokens,
		})
		if err != nil {
			return false, "", fmt.Errorf("severity check: %w", err)
		}
		if strings.Contains(strings.ToLower(response), "yes") {
			escalate = true
			reason = "Complex issue requiring senior support"
		}
	}

	status := "NO"
	if escalate {
		status = "YES"
	}
	e.logger.Info("escalation_decided",
		"run_id", st.RunID,
		"from", st.From,
		"verdict", status,
		"reason", reason,
		"prior_interactions", count,
	)

	return escalate, reason, nil
}
