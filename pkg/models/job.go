package models

import (
	"fmt"
	"sync"
	"time"
)

// JobKey identifies one unit of transcription work. Two submissions with
// equal keys are the same job.
type JobKey struct {
	Repository   string `json:"repository"`
	DocRef       string `json:"doc_ref"`
	PropertyPath string `json:"property_path"`
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Repository, k.DocRef, k.PropertyPath)
}

// JobState is the lifecycle state of a Job.
type JobState string

const (
	StateScheduled  JobState = "scheduled"
	StateRunning    JobState = "running"
	StateSuspending JobState = "suspending"
	StateSuspended  JobState = "suspended"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// Terminal reports whether the job will not run again.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Active reports whether a submission with the same key must be deduplicated.
func (s JobState) Active() bool {
	return s == StateScheduled || s == StateRunning || s == StateSuspending
}

// Status labels reported while a job runs.
const (
	LabelSoundtrackExtraction = "soundtrack_extraction"
	LabelLanguageDetection    = "language_detection"
	LabelSpeechTranscription  = "speech_transcription"
	LabelSavingResults        = "saving_results"
)

// ProgressIndeterminate is reported while a stage has no measurable progress.
const ProgressIndeterminate = -1

// Job is the live record of one scheduled transcription. The worker running
// it is the only writer; the scheduler reads it through Snapshot.
type Job struct {
	Key      JobKey
	Category string

	mu          sync.RWMutex
	state       JobState
	label       string
	progress    int
	reason      string
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
}

// NewJob returns a Scheduled job.
func NewJob(key JobKey, category string) *Job {
	return &Job{
		Key:       key,
		Category:  category,
		state:     StateScheduled,
		progress:  ProgressIndeterminate,
		createdAt: time.Now(),
	}
}

// State returns the current state.
func (j *Job) State() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Start moves a Scheduled job to Running. It returns false when the job was
// cancelled or suspended while it waited in the queue.
func (j *Job) Start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateScheduled {
		return false
	}
	j.state = StateRunning
	j.startedAt = time.Now()
	return true
}

// SetStatus updates the stage label and progress of a running job.
func (j *Job) SetStatus(label string, progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.label = label
	j.progress = progress
}

// SetProgress updates the progress only.
func (j *Job) SetProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = progress
}

// RequestSuspend asks the job to stop at its next checkpoint. A Scheduled job
// is suspended at once. It returns the state after the request.
func (j *Job) RequestSuspend() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case StateScheduled:
		j.state = StateSuspended
		j.completedAt = time.Now()
	case StateRunning:
		j.state = StateSuspending
	}
	return j.state
}

// IsSuspending is polled by the pipeline at its checkpoints.
func (j *Job) IsSuspending() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state == StateSuspending
}

// Complete marks the job done. reason is kept when non-empty.
func (j *Job) Complete(reason string) {
	j.finish(StateCompleted, reason)
	j.SetProgress(100)
}

// Fail marks the job failed with a diagnostic reason.
func (j *Job) Fail(reason string) {
	j.finish(StateFailed, reason)
}

// Suspend marks the job as stopped at a checkpoint.
func (j *Job) Suspend() {
	j.finish(StateSuspended, "")
}

func (j *Job) finish(state JobState, reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
	if reason != "" {
		j.reason = reason
	}
	j.completedAt = time.Now()
}

// Snapshot copies the job under its lock.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobSnapshot{
		Key:         j.Key,
		Category:    j.Category,
		State:       j.state,
		Label:       j.label,
		Progress:    j.progress,
		Reason:      j.reason,
		CreatedAt:   j.createdAt,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
	}
}

// JobSnapshot is a point-in-time copy of a Job, safe to serialize.
type JobSnapshot struct {
	Key         JobKey    `json:"key"`
	Category    string    `json:"category"`
	State       JobState  `json:"state"`
	Label       string    `json:"label,omitempty"`
	Progress    int       `json:"progress"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}
