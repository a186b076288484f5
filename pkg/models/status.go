package models

// StatusKind is the coarse view of a job shown to pollers.
type StatusKind string

const (
	StatusQueued    StatusKind = "queued"
	StatusRunning   StatusKind = "running"
	StatusCompleted StatusKind = "completed"
	StatusFailed    StatusKind = "failed"
	StatusSuspended StatusKind = "suspended"
)

// JobStatus is what status polling returns.
type JobStatus struct {
	Kind StatusKind `json:"kind"`

	// Queued
	Position  int `json:"position,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	// Running
	Label    string `json:"label,omitempty"`
	Progress int    `json:"progress"`

	Reason string `json:"reason,omitempty"`
}

func Queued(position, queueSize int) *JobStatus {
	return &JobStatus{Kind: StatusQueued, Position: position, QueueSize: queueSize, Progress: ProgressIndeterminate}
}

func Running(label string, progress int) *JobStatus {
	return &JobStatus{Kind: StatusRunning, Label: label, Progress: progress}
}

func Completed(reason string) *JobStatus {
	return &JobStatus{Kind: StatusCompleted, Progress: 100, Reason: reason}
}

func Failed(label, reason string) *JobStatus {
	return &JobStatus{Kind: StatusFailed, Label: label, Reason: reason, Progress: ProgressIndeterminate}
}

func Suspended(label string) *JobStatus {
	return &JobStatus{Kind: StatusSuspended, Label: label, Progress: ProgressIndeterminate}
}

// StatusFromSnapshot derives the polling view of a snapshot. position and
// queueSize only matter for Scheduled jobs.
func StatusFromSnapshot(s JobSnapshot, position, queueSize int) *JobStatus {
	switch s.State {
	case StateScheduled:
		return Queued(position, queueSize)
	case StateRunning, StateSuspending:
		return Running(s.Label, s.Progress)
	case StateCompleted:
		return Completed(s.Reason)
	case StateFailed:
		return Failed(s.Label, s.Reason)
	default:
		return Suspended(s.Label)
	}
}
