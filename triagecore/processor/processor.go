// Package processor is the top-level orchestrator: it assembles the stage
// graph, runs it over an inbound email, persists the interaction and returns
// a structured triage result.
package processor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sonukumar047/email-assistant/triagecore/config"
	"github.com/sonukumar047/email-assistant/triagecore/decision"
	"github.com/sonukumar047/email-assistant/triagecore/events"
	"github.com/sonukumar047/email-assistant/triagecore/history"
	"github.com/sonukumar047/email-assistant/triagecore/llm"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/observability"
	"github.com/sonukumar047/email-assistant/triagecore/stages"
	"github.com/sonukumar047/email-assistant/triagecore/state"
	"github.com/sonukumar047/email-assistant/triagecore/workflow"
)

// Email is an inbound message as supplied by callers (files, CLI, batch).
type Email struct {
	From    string                    `json:"from"`
	To      string                    `json:"to"`
	Subject string                    `json:"subject"`
	Body    string                    `json:"body"`
	History []state.InteractionRecord `json:"history,omitempty"`
}

// Options adjusts a single processing run.
type Options struct {
	// Tone overrides the configured default reply tone.
	Tone state.Tone

	// SaveToMemory controls whether the interaction is appended to the
	// history ledger after a successful run.
	SaveToMemory bool
}

// Result is the structured outcome of a triage run.
type Result struct {
	Subject          string     `json:"subject"`
	Body             string     `json:"body"`
	To               string     `json:"to"`
	From             string     `json:"from"`
	Intent           string     `json:"intent"`
	Sentiment        string     `json:"sentiment"`
	Escalate         bool       `json:"escalate"`
	EscalationReason string     `json:"escalation_reason,omitempty"`
	Confidence       float64    `json:"confidence"`
	ToneStyle        string     `json:"tone_style"`
	ProcessedAt      time.Time  `json:"processed_at"`
	ProcessingTime   float64    `json:"processing_time"` // seconds, 2 decimals
}

// Processor wires the triage pipeline together.
type Processor struct {
	cfg    *config.Config
	store  *history.Store
	engine *workflow.Engine
	bus    *events.Bus
	logger logging.Logger
}

// New assembles the fixed five-stage graph and returns a ready Processor.
// The bus is optional.
func New(cfg *config.Config, store *history.Store, gen llm.TextGenerator, bus *events.Bus, logger logging.Logger) (*Processor, error) {
	decider := decision.NewEngine(cfg, store, gen, logger)

	graph := []workflow.Stage{
		stages.NewAnalyzeStage(cfg, gen, logger),
		stages.NewSummarizeStage(cfg, gen, logger),
		stages.NewMemoryStage(store, logger),
		stages.NewReplyStage(cfg, gen, logger),
		stages.NewDecideStage(decider),
	}

	engine, err := workflow.NewEngine(graph, workflow.Options{
		Logger:       logger,
		Bus:          bus,
		StageTimeout: time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("assembling triage graph: %w", err)
	}

	return &Processor{
		cfg:    cfg,
		store:  store,
		engine: engine,
		bus:    bus,
		logger: logger.Bind("component", "processor"),
	}, nil
}

// Process runs the full triage pipeline for one email.
//
// A stage failure aborts the run and is returned as a *workflow.StageError;
// persisted state is never modified on a failed run. A failure to persist
// the interaction afterwards is logged but does not fail the run.
func (p *Processor) Process(ctx context.Context, email Email, opts Options) (*Result, error) {
	startTime := time.Now()

	tone := opts.Tone
	if tone == "" {
		tone = p.cfg.DefaultTone
	}

	st := state.New(email.From, email.To, email.Subject, email.Body, tone)
	if len(email.History) > 0 {
		st.History = append(st.History, email.History...)
	}

	p.logger.Info("processing_started",
		"run_id", st.RunID,
		"from", email.From,
		"tone_style", string(tone),
	)

	final, err := p.engine.Run(ctx, st)
	if err != nil {
		observability.RecordPipelineExecution("error", int(time.Since(startTime).Milliseconds()))
		return nil, err
	}

	processingTime := math.Round(time.Since(startTime).Seconds()*100) / 100
	processedAt := time.Now().UTC()

	if p.bus != nil {
		reason := ""
		if final.EscalationReason != nil {
			reason = *final.EscalationReason
		}
		p.bus.Publish(ctx, &events.EscalationDecided{
			RunID:    final.RunID,
			Escalate: final.Escalate,
			Reason:   reason,
		})
	}

	if opts.SaveToMemory {
		record := state.InteractionRecord{
			Timestamp: processedAt.Format(time.RFC3339),
			From:      final.From,
			To:        final.To,
			Subject:   final.Subject,
			Body:      final.Body,
			Intent:    string(final.Intent),
			Reply:     deref(final.ReplyBody),
			Escalated: final.Escalate,
		}
		if err := p.store.Append(final.From, record); err != nil {
			p.logger.Warn("interaction_persist_failed",
				"run_id", final.RunID,
				"from", final.From,
				"error", err.Error(),
			)
		}
	}

	observability.RecordPipelineExecution("success", int(time.Since(startTime).Milliseconds()))
	p.logger.Info("processing_completed",
		"run_id", final.RunID,
		"escalate", final.Escalate,
		"processing_time", processingTime,
	)

	return &Result{
		Subject:          deref(final.ReplySubject),
		Body:             deref(final.ReplyBody),
		To:               final.From,
		From:             final.To,
		Intent:           string(final.Intent),
		Sentiment:        string(final.Sentiment),
		Escalate:         final.Escalate,
		EscalationReason: deref(final.EscalationReason),
		Confidence:       derefFloat(final.Confidence),
		ToneStyle:        string(tone),
		ProcessedAt:      processedAt,
		ProcessingTime:   processingTime,
	}, nil
}

// Store exposes the history ledger, for CLI maintenance commands.
func (p *Processor) Store() *history.Store {
	return p.store
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
