package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/storage"
	"github.com/z-wentao/docscribe/pkg/transcript"
)

type fakeScheduler struct {
	jobs map[models.JobKey]*models.Job
	err  error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[models.JobKey]*models.Job)}
}

func (f *fakeScheduler) Submit(key models.JobKey) (*models.Job, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if j, ok := f.jobs[key]; ok && j.State().Active() {
		return j, false, nil
	}
	j := models.NewJob(key, "speech_transcription")
	f.jobs[key] = j
	return j, true, nil
}

func (f *fakeScheduler) Status(key models.JobKey) (*models.JobStatus, bool) {
	j, ok := f.jobs[key]
	if !ok {
		return nil, false
	}
	return models.StatusFromSnapshot(j.Snapshot(), 1, len(f.jobs)), true
}

func (f *fakeScheduler) Cancel(key models.JobKey) bool {
	_, ok := f.jobs[key]
	delete(f.jobs, key)
	return ok
}

func (f *fakeScheduler) List() []models.JobSnapshot { return nil }

func newService(t *testing.T, docs map[string]map[string]any) (*Service, *fakeScheduler) {
	t.Helper()
	store := storage.NewDocumentStore(storage.NewMemoryStore(), "default")
	for ref, props := range docs {
		raw := make(map[string]json.RawMessage)
		for k, v := range props {
			b, _ := json.Marshal(v)
			raw[k] = b
		}
		if err := store.Create(context.Background(), &storage.Document{Ref: ref, Properties: raw}); err != nil {
			t.Fatal(err)
		}
	}
	sched := newFakeScheduler()
	return New(store, "default", sched, nil, zerolog.Nop()), sched
}

func TestCanSubmit(t *testing.T) {
	svc, _ := newService(t, map[string]map[string]any{
		"unset":   {},
		"empty":   {"dc:language": ""},
		"blank":   {"dc:language": "  "},
		"french":  {"dc:language": "fr"},
		"klingon": {"dc:language": "tlh"},
	})

	tests := []struct {
		ref  string
		want bool
	}{
		{"unset", true},
		{"empty", true},
		{"blank", true},
		{"french", true},
		{"klingon", false},
	}
	for _, tt := range tests {
		got, err := svc.CanSubmit(context.Background(), tt.ref)
		if err != nil {
			t.Fatalf("CanSubmit(%s) error = %v", tt.ref, err)
		}
		if got != tt.want {
			t.Fatalf("CanSubmit(%s) = %v, want %v", tt.ref, got, tt.want)
		}
	}

	if _, err := svc.CanSubmit(context.Background(), "missing"); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Fatalf("CanSubmit(missing) error = %v, want %v", err, storage.ErrDocumentNotFound)
	}
}

func TestSubmitUsesDefaultProperty(t *testing.T) {
	svc, _ := newService(t, nil)

	snap, created, err := svc.Submit(context.Background(), "doc-1")
	if err != nil || !created {
		t.Fatalf("Submit() = %v, %v", created, err)
	}
	want := models.JobKey{Repository: "default", DocRef: "doc-1", PropertyPath: "file:content"}
	if snap.Key != want {
		t.Fatalf("key = %+v, want %+v", snap.Key, want)
	}

	if _, created, _ := svc.Submit(context.Background(), "doc-1"); created {
		t.Fatal("duplicate Submit() created a job")
	}
	if st := svc.StatusOf("doc-1"); st == nil || st.Kind != models.StatusQueued {
		t.Fatalf("StatusOf() = %+v, want queued", st)
	}
	if st := svc.StatusOf("other"); st != nil {
		t.Fatalf("StatusOf(other) = %+v, want nil", st)
	}
}

func TestSubmitError(t *testing.T) {
	svc, sched := newService(t, nil)
	boom := errors.New("queue is full")
	sched.err = boom

	if _, _, err := svc.Submit(context.Background(), "doc-1"); !errors.Is(err, boom) {
		t.Fatalf("Submit() error = %v, want %v", err, boom)
	}
}

func TestOnDocumentChanged(t *testing.T) {
	svc, sched := newService(t, nil)

	if err := svc.OnDocumentChanged(context.Background(), "doc-1", false); err != nil {
		t.Fatal(err)
	}
	if len(sched.jobs) != 0 {
		t.Fatal("job submitted without a media change")
	}

	if err := svc.OnDocumentChanged(context.Background(), "doc-1", true); err != nil {
		t.Fatal(err)
	}
	if len(sched.jobs) != 1 {
		t.Fatalf("%d jobs submitted, want 1", len(sched.jobs))
	}
}

func TestTranscript(t *testing.T) {
	sections := []transcript.Section{
		{TimecodeStart: 0, TimecodeStop: 1.5, Text: "Hello.", SpeakerID: "MS1"},
		{TimecodeStart: 1.5, TimecodeStop: 3, Text: "Bye.", SpeakerID: "MS1"},
	}
	svc, _ := newService(t, map[string]map[string]any{
		"done":    {"trans:sections": sections},
		"pending": {},
	})

	tr, err := svc.Transcript(context.Background(), "done")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 2 || tr.Text() != "Hello.\nBye." {
		t.Fatalf("transcript = %d sections, %q", tr.Len(), tr.Text())
	}

	if _, err := svc.Transcript(context.Background(), "pending"); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("Transcript(pending) error = %v, want %v", err, ErrNoTranscript)
	}
	if _, err := svc.Transcript(context.Background(), "missing"); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Fatalf("Transcript(missing) error = %v, want %v", err, storage.ErrDocumentNotFound)
	}
}
