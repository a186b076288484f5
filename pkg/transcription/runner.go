package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/events"
	"github.com/z-wentao/docscribe/pkg/language"
	"github.com/z-wentao/docscribe/pkg/media"
	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/storage"
	"github.com/z-wentao/docscribe/pkg/transcriber"
	"github.com/z-wentao/docscribe/pkg/transcript"
)

// Document properties and markers written by the pipeline.
const (
	PropLanguage     = "dc:language"
	PropMedia        = "file:content"
	PropSections     = "trans:sections"
	PropRelatedTexts = "relatedtext:relatedtextresources"

	FacetHasSpeechTranscription = "HasSpeechTranscription"

	// RelatedTextID names the related-text entry holding the transcript.
	RelatedTextID = "transcription"

	Category = "speech_transcription"
)

// Dependencies are the collaborators of a Runner.
type Dependencies struct {
	Store      storage.Store
	Recognizer transcriber.Recognizer
	Extractor  media.Extractor
	Fetcher    media.Fetcher
	Languages  *language.Table
	Publisher  events.Publisher
	Logger     zerolog.Logger
}

// Runner executes the transcription pipeline for one job at a time. It is
// safe to share between workers.
type Runner struct {
	store      storage.Store
	recognizer transcriber.Recognizer
	extractor  media.Extractor
	fetcher    media.Fetcher
	languages  *language.Table
	publisher  events.Publisher
	log        zerolog.Logger
}

func NewRunner(deps Dependencies) *Runner {
	r := &Runner{
		store:      deps.Store,
		recognizer: deps.Recognizer,
		extractor:  deps.Extractor,
		fetcher:    deps.Fetcher,
		languages:  deps.Languages,
		publisher:  deps.Publisher,
		log:        deps.Logger.With().Str("component", "transcription").Logger(),
	}
	if r.fetcher == nil {
		r.fetcher = media.LocalFetcher{}
	}
	if r.languages == nil {
		r.languages = language.Default()
	}
	if r.publisher == nil {
		r.publisher = events.NewLogPublisher(deps.Logger)
	}
	return r
}

type inputs struct {
	language string
	media    *models.Blob
}

// Run drives job through the pipeline. It returns nil when the transcript
// was saved, ErrSuspended when a checkpoint saw a suspend request, and an
// error wrapping ErrUnsupportedLanguage when no model fits the document.
func (r *Runner) Run(ctx context.Context, job *models.Job) error {
	key := job.Key
	log := r.log.With().Str("job", key.String()).Logger()
	job.SetStatus("", models.ProgressIndeterminate)

	// 1. read the language hint and the media, then let go of the session
	in, err := r.readInputs(ctx, key)
	if err != nil {
		return err
	}
	if err := checkpoint(job); err != nil {
		return err
	}

	// 2. nothing to transcribe
	if in.media == nil {
		log.Warn().Str("property", key.PropertyPath).Msg("no media found, aborting")
		return fmt.Errorf("%w for property %q on document %s", ErrInputMissing, key.PropertyPath, key.DocRef)
	}

	// 3. from here on only local files and remote calls
	var temps []models.Blob
	defer func() { media.Cleanup(log, temps...) }()

	// 4. get an MP3 on disk
	job.SetStatus(models.LabelSoundtrackExtraction, models.ProgressIndeterminate)
	local, err := r.fetcher.Fetch(ctx, *in.media)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}
	temps = append(temps, local)

	audio := local
	if media.NeedsExtraction(local) {
		if r.extractor == nil {
			return &ConversionError{Err: fmt.Errorf("no extractor for %s", local.MimeType)}
		}
		audio, err = r.extractor.Extract(ctx, local)
		if err != nil {
			return &ConversionError{Err: err}
		}
		temps = append(temps, audio)
	}
	if err := checkpoint(job); err != nil {
		return err
	}

	// 5. detect the language unless the document declares one
	lang := in.language
	detected := ""
	if lang == "" {
		job.SetStatus(models.LabelLanguageDetection, models.ProgressIndeterminate)
		long, ok, err := r.recognizer.DetectLanguage(ctx, audio)
		if err != nil {
			return fmt.Errorf("detect language: %w", err)
		}
		if ok {
			lang, _ = r.languages.ShortFor(long)
		}
		if lang == "" {
			log.Warn().Str("detected", long).Msg("language detection gave no usable language")
			return ErrDetectionInconclusive
		}
		detected = lang
		log.Info().Str("language", lang).Msg("language detected")
		if err := checkpoint(job); err != nil {
			return err
		}
	}

	// 6. pick the model
	model, ok := r.languages.LongFor(lang)
	if !ok {
		log.Info().Str("language", lang).Msg("no model available")
		return fmt.Errorf("%w %s", ErrUnsupportedLanguage, lang)
	}

	// 7. transcribe
	job.SetStatus(models.LabelSpeechTranscription, models.ProgressIndeterminate)
	t, err := r.recognizer.Transcribe(ctx, audio, model)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	if err := checkpoint(job); err != nil {
		return err
	}

	// 8. save in a fresh session
	job.SetStatus(models.LabelSavingResults, models.ProgressIndeterminate)
	saved, err := r.saveResults(ctx, key, detected, t)
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	if !saved {
		log.Warn().Msg("document deleted before results could be saved")
		return nil
	}
	log.Info().Int("sections", t.Len()).Msg("transcript saved")

	// 9. announce
	dc := models.DocumentContext{Repository: key.Repository, DocRef: key.DocRef, Category: Category}
	if err := r.publisher.Fire(ctx, events.TranscriptionCompleted, dc); err != nil {
		log.Error().Err(err).Msg("fire completion event")
	}
	return nil
}

func checkpoint(job *models.Job) error {
	if job.IsSuspending() {
		return ErrSuspended
	}
	return nil
}

// readInputs treats a missing document like missing media.
func (r *Runner) readInputs(ctx context.Context, key models.JobKey) (inputs, error) {
	var in inputs

	sess, err := r.store.Open(ctx)
	if err != nil {
		return in, fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	exists, err := sess.Exists(key.DocRef)
	if err != nil {
		return in, fmt.Errorf("read document %s: %w", key.DocRef, err)
	}
	if !exists {
		return in, nil
	}

	if err := sess.Get(key.DocRef, PropLanguage, &in.language); err != nil && !errors.Is(err, storage.ErrPropertyNotFound) {
		return in, fmt.Errorf("read %s: %w", PropLanguage, err)
	}
	in.language = strings.TrimSpace(in.language)

	var blob models.Blob
	err = sess.Get(key.DocRef, key.PropertyPath, &blob)
	switch {
	case errors.Is(err, storage.ErrPropertyNotFound):
	case err != nil:
		return in, fmt.Errorf("read %s: %w", key.PropertyPath, err)
	case blob.IsLocal() || blob.IsRemote():
		in.media = &blob
	}
	return in, nil
}

// saveResults reports false when the document no longer exists.
func (r *Runner) saveResults(ctx context.Context, key models.JobKey, detected string, t *transcript.Transcript) (bool, error) {
	sess, err := r.store.Open(ctx)
	if err != nil {
		return false, err
	}
	defer sess.Close()

	ref := key.DocRef
	exists, err := sess.Exists(ref)
	if err != nil || !exists {
		return false, err
	}

	if detected != "" {
		if err := sess.Set(ref, PropLanguage, detected); err != nil {
			return false, err
		}
	}
	has, err := sess.HasFacet(ref, FacetHasSpeechTranscription)
	if err != nil {
		return false, err
	}
	if !has {
		if err := sess.AddFacet(ref, FacetHasSpeechTranscription); err != nil {
			return false, err
		}
	}
	if err := sess.Set(ref, PropSections, t.Sections()); err != nil {
		return false, err
	}

	var related []models.RelatedText
	if err := sess.Get(ref, PropRelatedTexts, &related); err != nil && !errors.Is(err, storage.ErrPropertyNotFound) {
		return false, err
	}
	related = MergeRelatedText(related, models.RelatedText{ID: RelatedTextID, Text: t.Text()})
	if err := sess.Set(ref, PropRelatedTexts, related); err != nil {
		return false, err
	}

	if err := sess.Save(ref); err != nil {
		return false, err
	}
	return true, nil
}

// MergeRelatedText replaces the entry with the same ID in place, or appends
// entry when there is none.
func MergeRelatedText(list []models.RelatedText, entry models.RelatedText) []models.RelatedText {
	for i := range list {
		if list[i].ID == entry.ID {
			list[i].Text = entry.Text
			return list
		}
	}
	return append(list, entry)
}
