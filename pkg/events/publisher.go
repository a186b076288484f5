package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/models"
)

// TranscriptionCompleted is fired once a transcript has been saved on its
// document.
const TranscriptionCompleted = "transcriptionCompleted"

// Publisher fires document events.
type Publisher interface {
	Fire(ctx context.Context, name string, dc models.DocumentContext) error
}

// Event is the wire form of a fired event.
type Event struct {
	Name     string                 `json:"name"`
	Document models.DocumentContext `json:"document"`
	FiredAt  time.Time              `json:"fired_at"`
}

// LogPublisher writes events to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Fire(_ context.Context, name string, dc models.DocumentContext) error {
	p.log.Info().
		Str("event", name).
		Str("repository", dc.Repository).
		Str("doc", dc.DocRef).
		Str("category", dc.Category).
		Msg("event fired")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
