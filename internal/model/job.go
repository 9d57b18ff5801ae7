package model

import "time"

// JobStatus is the lifecycle state of a render job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

var ValidJobStatuses = []JobStatus{
	JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed,
}

// IsTerminal returns true for completed and failed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValid reports whether s is a known status
func (s JobStatus) IsValid() bool {
	for _, v := range ValidJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// RenderJob is one render request's lifecycle record
type RenderJob struct {
	ID            string       `json:"id"`
	ProjectID     string       `json:"projectId"`
	CompositionID string       `json:"compositionId"`
	Config        RenderConfig `json:"config"`
	Status        JobStatus    `json:"status"`
	Progress      int          `json:"progress"`
	OutputURL     string       `json:"outputUrl,omitempty"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// TerminalEvent builds the final event of a finished job
func (j RenderJob) TerminalEvent() ProgressEvent {
	ev := ProgressEvent{
		Type:       EventFailed,
		JobID:      j.ID,
		Status:     j.Status,
		Percentage: j.Progress,
		OutputURL:  j.OutputURL,
		Error:      j.Error,
	}
	if j.Status == JobStatusCompleted {
		ev.Type = EventCompleted
	}
	return ev
}

// Job event types
const (
	EventStarted   = "started"
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// ProgressEvent is delivered to job subscribers. Frame fields are only
// meaningful for progress events; EstimatedRemainingSeconds is omitted
// until at least one frame has been produced.
type ProgressEvent struct {
	Type                      string    `json:"type"`
	JobID                     string    `json:"jobId"`
	Status                    JobStatus `json:"status"`
	Frame                     int       `json:"frame"`
	TotalFrames               int       `json:"totalFrames"`
	Percentage                int       `json:"percentage"`
	ElapsedSeconds            float64   `json:"elapsedSeconds"`
	EstimatedRemainingSeconds *float64  `json:"estimatedRemainingSeconds,omitempty"`
	OutputURL                 string    `json:"outputUrl,omitempty"`
	Error                     string    `json:"error,omitempty"`
}

// IsTerminal returns true for completed and failed events
func (e ProgressEvent) IsTerminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}
