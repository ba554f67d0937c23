package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonukumar047/email-assistant/triagecore/config"
	"github.com/sonukumar047/email-assistant/triagecore/history"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/state"
	"github.com/sonukumar047/email-assistant/triagecore/testutil"
)

func newDecisionState(from, body string, intent state.Intent, sentiment state.Sentiment) *state.EmailState {
	st := state.New(from, "support@example.com", "Help needed", body, state.ToneProfessional)
	st.Intent = intent
	st.Sentiment = sentiment
	st.ReplySubject = state.StrPtr("Re: Help needed")
	st.ReplyBody = state.StrPtr("We are on it.")
	return st
}

func seedInteractions(t *testing.T, store *history.Store, key string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(key, state.InteractionRecord{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			From:      key,
			Body:      "earlier message",
			Intent:    "inquiry",
		}))
	}
}

func TestDecideNegativeComplaint(t *testing.T) {
	store := testutil.TempStore(t, 5)
	gen := &testutil.ScriptedGenerator{}
	engine := NewEngine(config.Default(), store, gen, logging.Nop())

	st := newDecisionState("a@example.com", "I am very unhappy with the product quality", state.IntentComplaint, state.SentimentNegative)
	escalate, reason, err := engine.Decide(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, escalate)
	assert.Equal(t, "Negative sentiment detected in complaint", reason)
}

func TestDecideKeywordsOverwriteSentimentReason(t *testing.T) {
	store := testutil.TempStore(t, 5)
	gen := &testutil.ScriptedGenerator{}
	engine := NewEngine(config.Default(), store, gen, logging.Nop())

	st := newDecisionState("a@example.com", "This is URGENT, my payment failed", state.IntentComplaint, state.SentimentNegative)
	escalate, reason, err := engine.Decide(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, escalate)
	assert.Contains(t, reason, "Urgent keywords detected")
	assert.Contains(t, reason, "urgent")
	assert.Contains(t, reason, "payment failed")
}

func TestDecideKeywordReasonCappedAtThree(t *testing.T) {
	store := testutil.TempStore(t, 5)
	gen := &testutil.ScriptedGenerator{}
	engine := NewEngine(config.Default(), store, gen, logging.Nop())

	st := newDecisionState("a@example.com",
		"urgent immediately asap critical refund", state.IntentRequest, state.SentimentNeutral)
	escalate, reason, err := engine.Decide(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, escalate)
	assert.Equal(t, "Urgent keywords detected: urgent, immediately, asap", reason)
}

func TestDecideRepeatCustomerOverwritesKeywordReason(t *testing.T) {
	store := testutil.TempStore(t, 5)
	gen := &testutil.ScriptedGenerator{}
	engine := NewEngine(config.Default(), store, gen, logging.Nop())

	seedInteractions(t, store, "repeat@example.com", 3)

	st := newDecisionState("repeat@example.com", "This is urgent, please respond asap", state.IntentRequest, state.SentimentNeutral)
	escalate, reason, err := engine.Decide(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, escalate)
	assert.Equal(t, "Repeat customer (3 previous interactions)", reason)
}

func TestDecideSeverityCheckOnlyForQuietComplaints(t *testing.T) {
	t.Run("yes escalates", func(t *testing.T) {
		store := testutil.TempStore(t, 5)
		gen := &testutil.ScriptedGenerator{Severity: "Yes, this should be escalated."}
		engine := NewEngine(config.Default(), store, gen, logging.Nop())

		st := newDecisionState("a@example.com", "The export feature silently drops rows", state.IntentComplaint, state.SentimentNeutral)
		escalate, reason, err := engine.Decide(context.Background(), st)
		require.NoError(t, err)
		assert.True(t, escalate)
		assert.Equal(t, "Complex issue requiring senior support", reason)
	})

	t.Run("no leaves verdict false", func(t *testing.T) {
		store := testutil.TempStore(t, 5)
		gen := &testutil.ScriptedGenerator{Severity: "no"}
		engine := NewEngine(config.Default(), store, gen, logging.Nop())

		st := newDecisionState("a@example.com", "The export feature silently drops rows", state.IntentComplaint, state.SentimentNeutral)
		escalate, reason, err := engine.Decide(context.Background(), st)
		require.NoError(t, err)
		assert.False(t, escalate)
		assert.Empty(t, reason)
	})

	t.Run("skipped when an earlier criterion matched", func(t *testing.T) {
		store := testutil.TempStore(t, 5)
		gen := &testutil.ScriptedGenerator{Severity: "yes"}
		engine := NewEngine(config.Default(), store, gen, logging.Nop())

		st := newDecisionState("a@example.com", "very disappointing", state.IntentComplaint, state.SentimentNegative)
		escalate, _, err := engine.Decide(context.Background(), st)
		require.NoError(t, err)
		assert.True(t, escalate)
		assert.Empty(t, gen.CallsOfKind(testutil.KindSeverity))
	})

	t.Run("skipped for non-complaints", func(t *testing.T) {
		store := testutil.TempStore(t, 5)
		gen := &testutil.ScriptedGenerator{Severity: "yes"}
		engine := NewEngine(config.Default(), store, gen, logging.Nop())

		st := newDecisionState("a@example.com", "how do I reset my password", state.IntentInquiry, state.SentimentNeutral)
		escalate, reason, err := engine.Decide(context.Background(), st)
		require.NoError(t, err)
		assert.False(t, escalate)
		assert.Empty(t, reason)
		assert.Empty(t, gen.CallsOfKind(testutil.KindSeverity))
	})
}

func TestDecideSeverityCheckFailurePropagates(t *testing.T) {
	store := testutil.TempStore(t, 5)
	gen := &testutil.ScriptedGenerator{
		Err: map[string]error{testutil.KindSeverity: errors.New("model unavailable")},
	}
	engine := NewEngine(config.Default(), store, gen, logging.Nop())

	st := newDecisionState("a@example.com", "The export feature silently drops rows", state.IntentComplaint, state.SentimentNeutral)
	_, _, err := engine.Decide(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "severity check")
}

func TestDecideCountReadBeforeSave(t *testing.T) {
	// The verdict uses prior interactions only; the current one is saved
	// later by the orchestrator.
	store := testutil.TempStore(t, 5)
	gen := &testutil.ScriptedGenerator{}
	cfg := config.Default()
	engine := NewEngine(cfg, store, gen, logging.Nop())

	seedInteractions(t, store, "edge@example.com", cfg.RepeatThreshold-1)

	st := newDecisionState("edge@example.com", "just checking in", state.IntentInquiry, state.SentimentNeutral)
	escalate, _, err := engine.Decide(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, escalate)
}
