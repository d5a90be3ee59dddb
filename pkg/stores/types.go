package stores

import "time"

// RunStatus represents the lifecycle state of a recipe run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is in progress.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates all stages completed.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates a stage failed and the run was aborted.
	RunStatusFailed RunStatus = "failed"
)

// Run is a persisted recipe run.
type Run struct {
	ID          string     `json:"id"`
	Recipe      string     `json:"recipe"`
	Version     string     `json:"version"`
	PackageID   *string    `json:"package_id,omitempty"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// StageEvent is one stage transition within a run.
type StageEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Message   *string   `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Download is one audit entry for a verified upstream archive download.
type Download struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	SHA256    string    `json:"sha256"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}
