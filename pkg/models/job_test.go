package models

import "testing"

func TestJobKeyIsComparable(t *testing.T) {
	a := JobKey{Repository: "default", DocRef: "doc-1", PropertyPath: "file:content"}
	b := JobKey{Repository: "default", DocRef: "doc-1", PropertyPath: "file:content"}
	m := map[JobKey]int{a: 1}
	if m[b] != 1 {
		t.Fatal("equal keys must address the same map entry")
	}
	if got, want := a.String(), "default:doc-1:file:content"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestJobLifecycle(t *testing.T) {
	j := NewJob(JobKey{DocRef: "d"}, "speech_transcription")
	if j.State() != StateScheduled {
		t.Fatalf("state = %v, want %v", j.State(), StateScheduled)
	}
	if !j.Start() {
		t.Fatal("Start() = false on a scheduled job")
	}
	if j.Start() {
		t.Fatal("Start() = true on a running job")
	}

	j.SetStatus(LabelSpeechTranscription, ProgressIndeterminate)
	if got := j.RequestSuspend(); got != StateSuspending {
		t.Fatalf("RequestSuspend() = %v, want %v", got, StateSuspending)
	}
	if !j.IsSuspending() {
		t.Fatal("IsSuspending() = false")
	}
	j.Suspend()

	s := j.Snapshot()
	if s.State != StateSuspended || s.Label != LabelSpeechTranscription {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.CompletedAt.IsZero() {
		t.Fatal("CompletedAt not set")
	}
}

func TestRequestSuspendOnScheduled(t *testing.T) {
	j := NewJob(JobKey{DocRef: "d"}, "c")
	if got := j.RequestSuspend(); got != StateSuspended {
		t.Fatalf("RequestSuspend() = %v, want %v", got, StateSuspended)
	}
	if j.Start() {
		t.Fatal("a suspended job must not start")
	}
}

func TestCompleteKeepsReason(t *testing.T) {
	j := NewJob(JobKey{DocRef: "d"}, "c")
	j.Start()
	j.Complete("no model available for language de")
	s := j.Snapshot()
	if s.State != StateCompleted || s.Progress != 100 || s.Reason == "" {
		t.Fatalf("snapshot = %+v", s)
	}
}

func TestStatusFromSnapshot(t *testing.T) {
	cases := []struct {
		state JobState
		want  StatusKind
	}{
		{StateScheduled, StatusQueued},
		{StateRunning, StatusRunning},
		{StateSuspending, StatusRunning},
		{StateCompleted, StatusCompleted},
		{StateFailed, StatusFailed},
		{StateSuspended, StatusSuspended},
	}
	for _, c := range cases {
		got := StatusFromSnapshot(JobSnapshot{State: c.state}, 2, 5)
		if got.Kind != c.want {
			t.Fatalf("StatusFromSnapshot(%v).Kind = %v, want %v", c.state, got.Kind, c.want)
		}
	}
	q := StatusFromSnapshot(JobSnapshot{State: StateScheduled}, 2, 5)
	if q.Position != 2 || q.QueueSize != 5 {
		t.Fatalf("queued = %+v", q)
	}
}
