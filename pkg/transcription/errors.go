package transcription

import (
	"errors"
	"fmt"
)

var (
	// ErrInputMissing means the document has no media at the job's property.
	ErrInputMissing = errors.New("no media found")

	// ErrDetectionInconclusive means the service found no known language.
	ErrDetectionInconclusive = errors.New("language detection inconclusive")

	// ErrUnsupportedLanguage ends a job without a transcript. It is not a
	// failure.
	ErrUnsupportedLanguage = errors.New("no model available for language")

	// ErrSuspended is returned when a checkpoint sees a suspend request.
	ErrSuspended = errors.New("job suspended")
)

// ConversionError wraps a failure of the soundtrack extraction.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("extract soundtrack: %v", e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
