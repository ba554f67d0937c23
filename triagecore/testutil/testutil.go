// Package testutil provides shared test doubles for the triage pipeline.
package testutil

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sonukumar047/email-assistant/triagecore/history"
	"github.com/sonukumar047/email-assistant/triagecore/llm"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
)

// Request kinds recognized by ScriptedGenerator, keyed off distinctive
// fragments of each system instruction.
const (
	KindIntent    = "intent"
	KindSentiment = "sentiment"
	KindSummary   = "summary"
	KindReply     = "reply"
	KindSeverity  = "severity"
)

// ScriptedGenerator is a TextGenerator returning canned responses per
// request kind. Zero-value fields fall back to benign defaults so tests
// only set what they assert on.
type ScriptedGenerator struct {
	Intent    string
	Sentiment string
	Summary   string
	Reply     string
	Severity  string

	// Delay injects latency per request kind, for barrier tests.
	Delay map[string]time.Duration

	// Err fails requests of the given kind.
	Err map[string]error

	mu    sync.Mutex
	calls []RecordedCall
}

// RecordedCall is one Generate invocation seen by the scripted generator.
type RecordedCall struct {
	Kind    string
	Request llm.Request
	Params  llm.Params
}

// Generate implements llm.TextGenerator.
func (g *ScriptedGenerator) Generate(ctx context.Context, req llm.Request, params llm.Params) (string, error) {
	kind := classifyRequest(req.System)

	g.mu.Lock()
	g.calls = append(g.calls, RecordedCall{Kind: kind, Request: req, Params: params})
	g.mu.Unlock()

	if d := g.Delay[kind]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err := g.Err[kind]; err != nil {
		return "", err
	}

	switch kind {
	case KindIntent:
		return orDefault(g.Intent, "inquiry"), nil
	case KindSentiment:
		return orDefault(g.Sentiment, "neutral"), nil
	case KindSummary:
		return orDefault(g.Summary, "Customer asks a question."), nil
	case KindReply:
		return orDefault(g.Reply, "Subject: Re: your email\nBody: Thanks for reaching out."), nil
	case KindSeverity:
		return orDefault(g.Severity, "no"), nil
	default:
		return "", nil
	}
}

// Calls returns a copy of all recorded invocations.
func (g *ScriptedGenerator) Calls() []RecordedCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]RecordedCall, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallsOfKind returns recorded invocations of one request kind.
func (g *ScriptedGenerator) CallsOfKind(kind string) []RecordedCall {
	out := make([]RecordedCall, 0)
	for _, c := range g.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func classifyRequest(system string) string {
	switch {
	case strings.Contains(system, "classification expert"):
		return KindIntent
	case strings.Contains(system, "sentiment"):
		return KindSentiment
	case strings.Contains(system, "Summarize the email"):
		return KindSummary
	case strings.Contains(system, "customer support agent"):
		return KindReply
	case strings.Contains(system, "senior support"):
		return KindSeverity
	default:
		return "unknown"
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// TempStore creates a history store backed by a per-test temp directory.
func TempStore(t *testing.T, maxHistory int) *history.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.json")
	return history.NewStore(path, maxHistory, logging.Nop())
}
