package model

import "time"

// RunStatus represents the review state of an extraction run.
type RunStatus string

const (
	RunStatusRunning       RunStatus = "running"
	RunStatusPendingReview RunStatus = "pending_review"
	RunStatusApproved      RunStatus = "approved"
	RunStatusFailed        RunStatus = "failed"
)

// Run is one recorded extraction and its review history.
type Run struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Request   ExtractionRequest `json:"request"`
	Status    RunStatus         `json:"status"`
	Result    *NormalizedResult `json:"result,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Error     string            `json:"error,omitempty"`
	Pushes    []Push            `json:"pushes,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Push records one approved write of a run's record to a sink.
type Push struct {
	Sink       string    `json:"sink"`
	Table      string    `json:"table"`
	ExternalID string    `json:"external_id"`
	PushedAt   time.Time `json:"pushed_at"`
}

// ExternalID returns the ID the sink assigned on the latest push, or "".
func (r *Run) ExternalID(sink string) string {
	for i := len(r.Pushes) - 1; i >= 0; i-- {
		if r.Pushes[i].Sink == sink {
			return r.Pushes[i].ExternalID
		}
	}
	return ""
}

// Reviewable reports whether the run holds a result that may be pushed.
func (r *Run) Reviewable() bool {
	return r.Result != nil && (r.Status == RunStatusPendingReview || r.Status == RunStatusApproved)
}
