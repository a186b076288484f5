package transcriber

import (
	"context"

	"github.com/z-wentao/docscribe/pkg/models"
	"github.com/z-wentao/docscribe/pkg/transcript"
)

// Recognizer is a remote speech-to-text service.
type Recognizer interface {
	// DetectLanguage returns the long language code spoken in the audio.
	// ok is false when the service could not tell.
	DetectLanguage(ctx context.Context, audio models.Blob) (long string, ok bool, err error)

	// Transcribe runs recognition with the given language model.
	Transcribe(ctx context.Context, audio models.Blob, model string) (*transcript.Transcript, error)
}

// DefaultMaxSegmentDuration keeps sections at a subtitle-friendly length.
const DefaultMaxSegmentDuration = 30.0
