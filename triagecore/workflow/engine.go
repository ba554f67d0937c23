// Package workflow provides a DAG engine for executing email triage stages
// with dependency-ordered parallel execution.
//
// Implements hybrid systemd + CSP pattern:
// - systemd-style: Declarative dependencies (Requires)
// - CSP-style: Channel-based coordination between goroutines
//
// The engine is the only writer to the shared state. Each stage receives a
// private snapshot containing only the writes of stages it depends on
// (directly or transitively) and returns its own writes as a Mutation. The
// engine merges mutations on the coordinator goroutine, so concurrent stages
// never race on state fields.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sonukumar047/email-assistant/triagecore/events"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/observability"
	"github.com/sonukumar047/email-assistant/triagecore/state"
)

var tracer = otel.Tracer("email-assistant/workflow")

// Mutation applies a stage's writes to the shared state.
type Mutation func(*state.EmailState)

// Stage is a single node in the triage graph.
type Stage struct {
	// Name uniquely identifies the stage.
	Name string

	// Requires lists stages that must complete before this one runs.
	// All writes of required stages (and their transitive dependencies)
	// are visible in the snapshot passed to Run.
	Requires []string

	// Run executes the stage against a private state snapshot and returns
	// the stage's writes. Returning a nil Mutation is valid for stages
	// with no state output.
	Run func(ctx context.Context, snap *state.EmailState) (Mutation, error)
}

// Options configures an Engine.
type Options struct {
	Logger logging.Logger
	Bus    *events.Bus // optional

	// StageTimeout bounds each stage execution. Zero means no timeout.
	StageTimeout time.Duration
}

// stageResult carries a finished stage back to the coordinator.
type stageResult struct {
	name     string
	mutation Mutation
	err      error
	duration time.Duration
}

// Engine executes a fixed stage graph over a shared state record.
type Engine struct {
	stages       map[string]Stage
	topoOrder    []string
	closure      map[string]map[string]bool // stage -> transitive dependency set
	logger       logging.Logger
	bus          *events.Bus
	stageTimeout time.Duration
}

// NewEngine validates the stage graph and returns an executor for it.
// Validation rejects duplicate names, unknown or self dependencies, and
// cycles (Kahn's algorithm).
func NewEngine(stages []Stage, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	byName := make(map[string]Stage, len(stages))
	for _, s := range stages {
		if s.Name == "" {
			return nil, &GraphError{Message: "stage name is required"}
		}
		if s.Run == nil {
			return nil, &GraphError{Message: fmt.Sprintf("stage '%s' has no run function", s.Name)}
		}
		if _, dup := byName[s.Name]; dup {
			return nil, &GraphError{Message: fmt.Sprintf("duplicate stage name: %s", s.Name)}
		}
		byName[s.Name] = s
	}

	for _, s := range stages {
		for _, dep := range s.Requires {
			if dep == s.Name {
				return nil, &GraphError{Message: fmt.Sprintf("stage '%s' cannot require itself", s.Name)}
			}
			if _, ok := byName[dep]; !ok {
				return nil, &GraphError{Message: fmt.Sprintf("stage '%s' requires unknown stage '%s'", s.Name, dep)}
			}
		}
	}

	// Kahn's algorithm for topological sort + cycle detection.
	dependents := make(map[string][]string)
	inDegree := make(map[string]int)
	for _, s := range stages {
		inDegree[s.Name] = len(s.Requires)
		for _, dep := range s.Requires {
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	queue := make([]string, 0)
	for _, s := range stages {
		if inDegree[s.Name] == 0 {
			queue = append(queue, s.Name)
		}
	}

	topo := make([]string, 0, len(stages))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		topo = append(topo, current)
		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(topo) != len(stages) {
		cycleNodes := make([]string, 0)
		for name, degree := range inDegree {
			if degree > 0 {
				cycleNodes = append(cycleNodes, name)
			}
		}
		return nil, &GraphError{Message: fmt.Sprintf("dependency cycle detected involving stages: %v", cycleNodes)}
	}

	// Transitive dependency closure, computed in topo order so each
	// stage's set is complete when its dependents are processed.
	closure := make(map[string]map[string]bool, len(stages))
	for _, name := range topo {
		set := make(map[string]bool)
		for _, dep := range byName[name].Requires {
			set[dep] = true
			for inherited := range closure[dep] {
				set[inherited] = true
			}
		}
		closure[name] = set
	}

	return &Engine{
		stages:       byName,
		topoOrder:    topo,
		closure:      closure,
		logger:       logger.Bind("component", "workflow"),
		bus:          opts.Bus,
		stageTimeout: opts.StageTimeout,
	}, nil
}

// TopologicalOrder returns the validated execution order.
func (e *Engine) TopologicalOrder() []string {
	order := make([]string, len(e.topoOrder))
	copy(order, e.topoOrder)
	return order
}

// Run executes all stages respecting dependency order and returns the final
// merged state. The input state is never modified. The first stage failure
// aborts the run with a *StageError; in-flight stages are cancelled and
// awaited before returning.
func (e *Engine) Run(ctx context.Context, base *state.EmailState) (*state.EmailState, error) {
	startTime := time.Now()

	e.logger.Info("workflow_started",
		"run_id", base.RunID,
		"stage_count", len(e.stages),
		"topological_order", e.topoOrder,
	)

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	final, err := e.coordinate(execCtx, base)

	durationMS := int(time.Since(startTime).Milliseconds())
	status := "success"
	if err != nil {
		status = "error"
	}

	e.logger.Info("workflow_completed",
		"run_id", base.RunID,
		"status", status,
		"duration_ms", durationMS,
	)

	e.publish(ctx, &events.PipelineCompleted{
		RunID:      base.RunID,
		Status:     status,
		DurationMS: float64(durationMS),
	})

	return final, err
}

// coordinate is the main coordination loop. It is the only goroutine that
// touches the mutation map, so merges need no locking.
func (e *Engine) coordinate(ctx context.Context, base *state.EmailState) (*state.EmailState, error) {
	pending := make(map[string]bool, len(e.stages))
	for name := range e.stages {
		pending[name] = true
	}
	completed := make(map[string]bool, len(e.stages))
	mutations := make(map[string]Mutation, len(e.stages))

	resultChan := make(chan stageResult, len(e.stages))

	var wg sync.WaitGroup
	defer wg.Wait()

	// Registered after wg.Wait so it fires first: any in-flight stages are
	// cancelled, then awaited, before coordinate returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	active := 0
	for len(completed) < len(e.stages) {
		// Start every pending stage whose dependencies are satisfied.
		for _, name := range e.topoOrder {
			if !pending[name] {
				continue
			}
			if !e.depsSatisfied(name, completed) {
				continue
			}
			delete(pending, name)
			active++

			snap := e.snapshot(base, name, mutations)
			wg.Add(1)
			go func(stage Stage, snap *state.EmailState) {
				defer wg.Done()
				resultChan <- e.runStage(ctx, base.RunID, stage, snap)
			}(e.stages[name], snap)

			e.logger.Debug("stage_dispatched",
				"run_id", base.RunID,
				"stage", name,
				"active_count", active,
			)
		}

		select {
		case result := <-resultChan:
			active--
			if result.err != nil {
				return nil, &StageError{Stage: result.name, Err: result.err}
			}
			completed[result.name] = true
			mutations[result.name] = result.mutation

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return e.merge(base, mutations), nil
}

// runStage executes one stage with tracing, metrics and event publication.
func (e *Engine) runStage(ctx context.Context, runID string, stage Stage, snap *state.EmailState) stageResult {
	stageCtx := ctx
	if e.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, e.stageTimeout)
		defer cancel()
	}

	stageCtx, span := tracer.Start(stageCtx, "stage."+stage.Name)
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("stage", stage.Name),
	)
	defer span.End()

	e.publish(stageCtx, &events.StageStarted{RunID: runID, Stage: stage.Name})

	startTime := time.Now()
	mutation, err := stage.Run(stageCtx, snap)
	duration := time.Since(startTime)

	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, errMsg)
		e.logger.Error("stage_failed",
			"run_id", runID,
			"stage", stage.Name,
			"duration_ms", duration.Milliseconds(),
			"error", errMsg,
		)
	} else {
		e.logger.Info("stage_completed",
			"run_id", runID,
			"stage", stage.Name,
			"duration_ms", duration.Milliseconds(),
		)
	}

	observability.RecordStageExecution(stage.Name, status, int(duration.Milliseconds()))
	e.publish(stageCtx, &events.StageCompleted{
		RunID:      runID,
		Stage:      stage.Name,
		Status:     status,
		DurationMS: float64(duration.Milliseconds()),
		Error:      errMsg,
	})

	return stageResult{name: stage.Name, mutation: mutation, err: err, duration: duration}
}

// depsSatisfied reports whether all Requires of a stage have completed.
func (e *Engine) depsSatisfied(name string, completed map[string]bool) bool {
	for _, dep := range e.stages[name].Requires {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// snapshot builds the private state visible to a stage: the base state plus
// the writes of its transitive dependencies, applied in topological order.
// Writes of unrelated stages are never visible, regardless of timing.
func (e *Engine) snapshot(base *state.EmailState, name string, mutations map[string]Mutation) *state.EmailState {
	snap := base.Clone()
	for _, dep := range e.topoOrder {
		if !e.closure[name][dep] {
			continue
		}
		if m := mutations[dep]; m != nil {
			m(snap)
		}
	}
	return snap
}

// merge produces the final state by applying every stage's writes to the
// base in topological order. Deterministic regardless of completion order.
func (e *Engine) merge(base *state.EmailState, mutations map[string]Mutation) *state.EmailState {
	final := base.Clone()
	for _, name := range e.topoOrder {
		if m := mutations[name]; m != nil {
			m(final)
		}
	}
	return final
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, event)
}
