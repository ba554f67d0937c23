package events

// Event type names.
const (
	TypeStageStarted      = "stage_started"
	TypeStageCompleted    = "stage_completed"
	TypePipelineCompleted = "pipeline_completed"
	TypeEscalationDecided = "escalation_decided"
)

// Event is the interface implemented by all bus events.
type Event interface {
	Type() string
}

// StageStarted is published when a workflow stage begins execution.
type StageStarted struct {
	RunID string
	Stage string
}

func (e *StageStarted) Type() string { return TypeStageStarted }

// StageCompleted is published when a workflow stage finishes, whether it
// succeeded or failed.
type StageCompleted struct {
	RunID      string
	Stage      string
	Status     string // "success" or "error"
	DurationMS float64
	Error      string // empty on success
}

func (e *StageCompleted) Type() string { return TypeStageCompleted }

// PipelineCompleted is published once per run after all stages settle.
type PipelineCompleted struct {
	RunID      string
	Status     string // "success" or "error"
	DurationMS float64
}

func (e *PipelineCompleted) Type() string { return TypePipelineCompleted }

// EscalationDecided is published when the decision stage resolves whether the
// interaction requires human attention.
type EscalationDecided struct {
	RunID    string
	Escalate bool
	Reason   string
}

func (e *EscalationDecided) Type() string { return TypeEscalationDecided }
