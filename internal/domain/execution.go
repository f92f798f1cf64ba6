package domain

import "time"

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepPassed     StepStatus = "passed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

type StepResult struct {
	ConditionMet *bool             `json:"condition_met,omitempty"`
	Assignment   *AssignmentResult `json:"assignment,omitempty"`
	Recipient    string            `json:"recipient,omitempty"`
	Approved     bool              `json:"approved,omitempty"`
	Summary      string            `json:"summary,omitempty"`
}

type ExecutionStep struct {
	NodeID    string      `json:"node_id"`
	NodeKind  NodeKind    `json:"node_kind"`
	NodeLabel string      `json:"node_label"`
	Status    StepStatus  `json:"status"`
	Result    *StepResult `json:"result,omitempty"`
	Message   string      `json:"message"`
	ElapsedMS int64       `json:"elapsed_ms"`
}

type ExecutionTrace struct {
	RunID          string          `json:"run_id"`
	GraphID        string          `json:"graph_id,omitempty"`
	Status         StepStatus      `json:"status"`
	Steps          []ExecutionStep `json:"steps"`
	FinalAction    string          `json:"final_action,omitempty"`
	TotalElapsedMS int64           `json:"total_elapsed_ms"`
	StartedAt      time.Time       `json:"started_at"`
	Signature      string          `json:"signature,omitempty"`
}

func NewExecutionTrace(runID, graphID string, startedAt time.Time) *ExecutionTrace {
	return &ExecutionTrace{
		RunID:     runID,
		GraphID:   graphID,
		Status:    StepProcessing,
		Steps:     make([]ExecutionStep, 0),
		StartedAt: startedAt,
	}
}

// Finish settles the trace status: passed only when every recorded step
// passed.
func (t *ExecutionTrace) Finish(totalElapsed time.Duration) {
	t.TotalElapsedMS = totalElapsed.Milliseconds()
	t.Status = StepPassed
	for _, s := range t.Steps {
		if s.Status != StepPassed {
			t.Status = StepFailed
			return
		}
	}
}

func (t *ExecutionTrace) Failed() bool {
	return t.Status == StepFailed
}
