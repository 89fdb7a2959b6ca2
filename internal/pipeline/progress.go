package pipeline

import "time"

// Phase is the stage a run is in.
type Phase string

const (
	PhaseQueued    Phase = "queued"
	PhaseLoading   Phase = "loading"
	PhaseMerging   Phase = "merging"
	PhaseDeriving  Phase = "deriving"
	PhaseExporting Phase = "exporting"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether the run has stopped.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// Progress is the externally visible state of a run.
type Progress struct {
	RunID      string         `json:"run_id"`
	Phase      Phase          `json:"phase"`
	Dir        string         `json:"dir,omitempty"`
	Rows       int            `json:"rows"`
	Issues     map[string]int `json:"issues,omitempty"`
	Artifacts  []string       `json:"artifacts,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}
