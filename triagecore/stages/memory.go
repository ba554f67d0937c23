package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/sonukumar047/email-assistant/triagecore/history"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/state"
	"github.com/sonukumar047/email-assistant/triagecore/workflow"
)

// recentInteractions bounds how many prior interactions appear in the context.
const recentInteractions = 3

// bodyPreviewLen bounds the body excerpt per prior interaction.
const bodyPreviewLen = 100

// NewMemoryStage builds the conversation-context stage. It queries the
// history ledger for the correspondent and formats prior interactions into
// a context string for reply generation. Ledger corruption is recovered
// inside the store, so this stage never fails on bad persisted data.
func NewMemoryStage(store *history.Store, logger logging.Logger) workflow.Stage {
	log := logger.Bind("stage", StageMemory)

	return workflow.Stage{
		Name:     StageMemory,
		Requires: []string{StageAnalyze},
		Run: func(ctx context.Context, snap *state.EmailState) (workflow.Mutation, error) {
			records := store.Load(snap.From)
			memoryContext := FormatHistory(records)

			log.Info("memory_context_built",
				"run_id", snap.RunID,
				"from", snap.From,
				"prior_interactions", len(records),
			)

			return func(st *state.EmailState) {
				st.MemoryContext = state.StrPtr(memoryContext)
			}, nil
		},
	}
}

// FormatHistory renders prior interactions as a readable context block.
// Only the most recent interactions are included, each with a bounded body
// preview. An empty history yields a first-contact note.
func FormatHistory(records []state.InteractionRecord) string {
	if len(records) == 0 {
		return "This is the first interaction with this customer."
	}

	parts := []string{
		fmt.Sprintf("Customer has contacted us %d time(s) before:", len(records)),
	}

	recent := records
	if len(recent) > recentInteractions {
		recent = recent[len(recent)-recentInteractions:]
	}

	for idx, rec := range recent {
		timestamp := rec.Timestamp
		if timestamp == "" {
			timestamp = "Unknown time"
		}
		intent := rec.Intent
		if intent == "" {
			intent = "unknown"
		}
		parts = append(parts, fmt.Sprintf(
			"%d. [%s] Intent: %s, Escalated: %t\n   Preview: %s...",
			idx+1, timestamp, intent, rec.Escalated, truncate(rec.Body, bodyPreviewLen),
		))
	}

	return strings.Join(parts, "\n")
}
