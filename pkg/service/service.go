package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/language"
	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/storage"
	"github.com/z-wentao/docscribe/pkg/transcript"
	"github.com/z-wentao/docscribe/pkg/transcription"
)

// ErrNoTranscript is returned for documents that were never transcribed.
var ErrNoTranscript = errors.New("document has no transcript")

// Scheduler is the part of *scheduler.Scheduler the service drives.
type Scheduler interface {
	Submit(key models.JobKey) (*models.Job, bool, error)
	Status(key models.JobKey) (*models.JobStatus, bool)
	Cancel(key models.JobKey) bool
	List() []models.JobSnapshot
}

// Service launches and monitors the transcription of the media of
// documents. Results are stored on the documents themselves.
type Service struct {
	store      storage.Store
	repository string
	scheduler  Scheduler
	languages  *language.Table
	property   string
	log        zerolog.Logger
}

func New(store storage.Store, repository string, sched Scheduler, languages *language.Table, log zerolog.Logger) *Service {
	if languages == nil {
		languages = language.Default()
	}
	return &Service{
		store:      store,
		repository: repository,
		scheduler:  sched,
		languages:  languages,
		property:   transcription.PropMedia,
		log:        log.With().Str("component", "service").Logger(),
	}
}

func (s *Service) key(ref string) models.JobKey {
	return models.JobKey{Repository: s.repository, DocRef: ref, PropertyPath: s.property}
}

// CanSubmit reports whether the document language is unset or has a model.
func (s *Service) CanSubmit(ctx context.Context, ref string) (bool, error) {
	sess, err := s.store.Open(ctx)
	if err != nil {
		return false, err
	}
	defer sess.Close()

	var lang string
	err = sess.Get(ref, transcription.PropLanguage, &lang)
	switch {
	case errors.Is(err, storage.ErrPropertyNotFound):
		return true, nil
	case err != nil:
		return false, err
	}
	return strings.TrimSpace(lang) == "" || s.languages.IsSupported(lang), nil
}

// Submit schedules the transcription of the document media unless one is
// already queued or running.
func (s *Service) Submit(ctx context.Context, ref string) (models.JobSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.JobSnapshot{}, false, err
	}
	job, created, err := s.scheduler.Submit(s.key(ref))
	if err != nil {
		return models.JobSnapshot{}, false, fmt.Errorf("submit %s: %w", ref, err)
	}
	return job.Snapshot(), created, nil
}

// StatusOf returns nil when no job is tracked for the document.
func (s *Service) StatusOf(ref string) *models.JobStatus {
	st, ok := s.scheduler.Status(s.key(ref))
	if !ok {
		return nil
	}
	return st
}

func (s *Service) Cancel(ref string) bool {
	return s.scheduler.Cancel(s.key(ref))
}

func (s *Service) Jobs() []models.JobSnapshot {
	return s.scheduler.List()
}

// Transcript reads the saved sections of the document.
func (s *Service) Transcript(ctx context.Context, ref string) (*transcript.Transcript, error) {
	sess, err := s.store.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	var sections []transcript.Section
	err = sess.Get(ref, transcription.PropSections, &sections)
	if errors.Is(err, storage.ErrPropertyNotFound) {
		return nil, ErrNoTranscript
	}
	if err != nil {
		return nil, err
	}
	return transcript.FromSections(sections), nil
}

// OnDocumentChanged is called after a document was created or updated. A
// new transcription starts only when its media changed.
func (s *Service) OnDocumentChanged(ctx context.Context, ref string, mediaChanged bool) error {
	if !mediaChanged {
		return nil
	}
	_, created, err := s.Submit(ctx, ref)
	if err != nil {
		return err
	}
	s.log.Debug().Str("doc", ref).Bool("created", created).Msg("media changed")
	return nil
}
