package state

import (
	"time"

	"github.com/google/uuid"
)

// InteractionRecord is one persisted interaction with a correspondent.
// Immutable once written; JSON field names match the on-disk ledger format.
type InteractionRecord struct {
	Timestamp string `json:"timestamp"` // RFC 3339
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Intent    string `json:"intent"`
	Reply     string `json:"reply"`
	Escalated bool   `json:"escalated"`
}

// EmailState is the shared state record for a single triage run.
//
// Input fields are set at construction and never mutated. Processing and
// output fields are written exactly once, each by a single pipeline stage;
// the workflow engine is the only writer and applies stage mutations on one
// control path, so no per-field locking is needed.
type EmailState struct {
	// Identification
	RunID      string    `json:"run_id"`
	ReceivedAt time.Time `json:"received_at"`

	// Input
	From    string              `json:"from"`
	To      string              `json:"to"`
	Subject string              `json:"subject"`
	Body    string              `json:"body"`
	History []InteractionRecord `json:"history,omitempty"` // caller-supplied prior history

	// Configuration
	Tone Tone `json:"tone_style"`

	// Processing (set by analyze)
	Intent     Intent   `json:"intent,omitempty"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	// Processing (set by summarize / memory)
	Summary       *string `json:"summary,omitempty"`
	MemoryContext *string `json:"memory_context,omitempty"`

	// Output (set by reply)
	ReplySubject *string `json:"reply_subject,omitempty"`
	ReplyBody    *string `json:"reply_body,omitempty"`

	// Output (set by decide)
	Escalate         bool    `json:"escalate"`
	EscalationReason *string `json:"escalation_reason,omitempty"`

	// Metadata (informational only)
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	ProcessingTime *float64   `json:"processing_time,omitempty"` // seconds
}

// New creates an EmailState for an inbound email with a fresh run ID.
func New(from, to, subject, body string, tone Tone) *EmailState {
	if tone == "" {
		tone = ToneProfessional
	}
	return &EmailState{
		RunID:      "run_" + uuid.New().String()[:16],
		ReceivedAt: time.Now().UTC(),
		From:       from,
		To:         to,
		Subject:    subject,
		Body:       body,
		History:    []InteractionRecord{},
		Tone:       tone,
	}
}

// Clone returns a deep copy. The workflow engine hands clones to stages so a
// stage never observes writes from stages it does not depend on.
func (s *EmailState) Clone() *EmailState {
	c := *s
	c.History = make([]InteractionRecord, len(s.History))
	copy(c.History, s.History)
	c.Confidence = clonePtr(s.Confidence)
	c.Summary = clonePtr(s.Summary)
	c.MemoryContext = clonePtr(s.MemoryContext)
	c.ReplySubject = clonePtr(s.ReplySubject)
	c.ReplyBody = clonePtr(s.ReplyBody)
	c.EscalationReason = clonePtr(s.EscalationReason)
	c.ProcessedAt = clonePtr(s.ProcessedAt)
	c.ProcessingTime = clonePtr(s.ProcessingTime)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// StrPtr returns a pointer to s. Convenience for optional string fields.
func StrPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f. Convenience for optional float fields.
func FloatPtr(f float64) *float64 { return &f }
