package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/state"
)

func newTestState() *state.EmailState {
	return state.New("alice@example.com", "support@example.com", "Help", "My order is late", state.ToneProfessional)
}

func noopStage(name string, requires ...string) Stage {
	return Stage{
		Name:     name,
		Requires: requires,
		Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
			return nil, nil
		},
	}
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		wantErr string
	}{
		{
			name:    "duplicate stage name",
			stages:  []Stage{noopStage("a"), noopStage("a")},
			wantErr: "duplicate stage name",
		},
		{
			name:    "unknown dependency",
			stages:  []Stage{noopStage("a", "missing")},
			wantErr: "unknown stage",
		},
		{
			name:    "self dependency",
			stages:  []Stage{noopStage("a", "a")},
			wantErr: "cannot require itself",
		},
		{
			name:    "cycle",
			stages:  []Stage{noopStage("a", "b"), noopStage("b", "a")},
			wantErr: "cycle",
		},
		{
			name:    "missing run function",
			stages:  []Stage{{Name: "a"}},
			wantErr: "no run function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.stages, Options{Logger: logging.Nop()})
			require.Error(t, err)
			var graphErr *GraphError
			assert.True(t, errors.As(err, &graphErr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTopologicalOrder(t *testing.T) {
	engine, err := NewEngine([]Stage{
		noopStage("analyze"),
		noopStage("summarize", "analyze"),
		noopStage("memory", "analyze"),
		noopStage("reply", "summarize", "memory"),
		noopStage("decide", "reply"),
	}, Options{Logger: logging.Nop()})
	require.NoError(t, err)

	order := engine.TopologicalOrder()
	require.Len(t, order, 5)

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos["analyze"], pos["summarize"])
	assert.Less(t, pos["analyze"], pos["memory"])
	assert.Less(t, pos["summarize"], pos["reply"])
	assert.Less(t, pos["memory"], pos["reply"])
	assert.Less(t, pos["reply"], pos["decide"])
}

func TestRunMergesAllMutations(t *testing.T) {
	engine, err := NewEngine([]Stage{
		{
			Name: "analyze",
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				return func(st *state.EmailState) {
					st.Intent = state.IntentComplaint
					st.Sentiment = state.SentimentNegative
				}, nil
			},
		},
		{
			Name:     "summarize",
			Requires: []string{"analyze"},
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				return func(st *state.EmailState) {
					st.Summary = state.StrPtr("order delayed")
				}, nil
			},
		},
	}, Options{Logger: logging.Nop()})
	require.NoError(t, err)

	base := newTestState()
	final, err := engine.Run(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, state.IntentComplaint, final.Intent)
	require.NotNil(t, final.Summary)
	assert.Equal(t, "order delayed", *final.Summary)

	// The input state is never modified.
	assert.Empty(t, base.Intent)
	assert.Nil(t, base.Summary)
}

func TestRunBarrierWaitsForAllDependencies(t *testing.T) {
	// Inject a delay into one tier-2 stage and verify the merge stage
	// still observes both outputs.
	engine, err := NewEngine([]Stage{
		{
			Name: "analyze",
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				return func(st *state.EmailState) { st.Intent = state.IntentInquiry }, nil
			},
		},
		{
			Name:     "summarize",
			Requires: []string{"analyze"},
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				time.Sleep(80 * time.Millisecond)
				return func(st *state.EmailState) { st.Summary = state.StrPtr("slow summary") }, nil
			},
		},
		{
			Name:     "memory",
			Requires: []string{"analyze"},
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				return func(st *state.EmailState) { st.MemoryContext = state.StrPtr("fast context") }, nil
			},
		},
		{
			Name:     "reply",
			Requires: []string{"summarize", "memory"},
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				require.NotNil(t, snap.Summary)
				require.NotNil(t, snap.MemoryContext)
				assert.Equal(t, "slow summary", *snap.Summary)
				assert.Equal(t, "fast context", *snap.MemoryContext)
				return func(st *state.EmailState) { st.ReplyBody = state.StrPtr("drafted") }, nil
			},
		},
	}, Options{Logger: logging.Nop()})
	require.NoError(t, err)

	final, err := engine.Run(context.Background(), newTestState())
	require.NoError(t, err)
	require.NotNil(t, final.ReplyBody)
	assert.Equal(t, "drafted", *final.ReplyBody)
}

func TestRunSnapshotHidesNonDependencyWrites(t *testing.T) {
	// "memory" and "summarize" are siblings; even if summarize finishes
	// first, memory must not see its write.
	summarizeDone := make(chan struct{})
	engine, err := NewEngine([]Stage{
		{
			Name: "summarize",
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				defer close(summarizeDone)
				return func(st *state.EmailState) { st.Summary = state.StrPtr("done first") }, nil
			},
		},
		{
			Name: "memory",
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				<-summarizeDone
				assert.Nil(t, snap.Summary)
				return func(st *state.EmailState) { st.MemoryContext = state.StrPtr("ctx") }, nil
			},
		},
	}, Options{Logger: logging.Nop()})
	require.NoError(t, err)

	final, err := engine.Run(context.Background(), newTestState())
	require.NoError(t, err)
	require.NotNil(t, final.Summary)
	require.NotNil(t, final.MemoryContext)
}

func TestRunFailFast(t *testing.T) {
	var replyRan sync.Once
	ran := false

	engine, err := NewEngine([]Stage{
		{
			Name: "analyze",
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				return nil, errors.New("model unavailable")
			},
		},
		{
			Name:     "reply",
			Requires: []string{"analyze"},
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				replyRan.Do(func() { ran = true })
				return nil, nil
			},
		},
	}, Options{Logger: logging.Nop()})
	require.NoError(t, err)

	final, err := engine.Run(context.Background(), newTestState())
	assert.Nil(t, final)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "analyze", stageErr.Stage)
	assert.Contains(t, stageErr.Error(), "model unavailable")
	assert.False(t, ran, "dependent stage must not run after failure")
}

func TestRunStageTimeout(t *testing.T) {
	engine, err := NewEngine([]Stage{
		{
			Name: "analyze",
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				select {
				case <-time.After(2 * time.Second):
					return nil, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
	}, Options{Logger: logging.Nop(), StageTimeout: 30 * time.Millisecond})
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), newTestState())
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.ErrorIs(t, stageErr.Err, context.DeadlineExceeded)
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	engine, err := NewEngine([]Stage{
		{
			Name: "analyze",
			Run: func(ctx context.Context, snap *state.EmailState) (Mutation, error) {
				cancel()
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
	}, Options{Logger: logging.Nop()})
	require.NoError(t, err)

	_, err = engine.Run(ctx, newTestState())
	require.Error(t, err)
}
