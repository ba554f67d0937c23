package stages

import (
	"context"

	"github.com/sonukumar047/email-assistant/triagecore/decision"
	"github.com/sonukumar047/email-assistant/triagecore/state"
	"github.com/sonukumar047/email-assistant/triagecore/workflow"
)

// NewDecideStage builds the terminal stage, wrapping the decision engine.
// It requires the reply to be present so the persisted record and the
// verdict always refer to a fully drafted interaction.
func NewDecideStage(engine *decision.Engine) workflow.Stage {
	return workflow.Stage{
		Name:     StageDecide,
		Requires: []string{StageGenerateReply},
		Run: func(ctx context.Context, snap *state.EmailState) (workflow.Mutation, error) {
			escalate, reason, err := engine.Decide(ctx, snap)
			if err != nil {
				return nil, err
			}

			return func(st *state.EmailState) {
				st.Escalate = escalate
				if reason != "" {
					st.EscalationReason = state.StrPtr(reason)
				}
			}, nil
		},
	}
}
