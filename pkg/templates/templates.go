package templates

import (
	"fmt"
	"time"

	"github.com/z-wentao/docscribe/pkg/models"
)

var labelMessages = map[string]string{
	models.LabelSoundtrackExtraction: "Extracting soundtrack…",
	models.LabelLanguageDetection:    "Detecting language…",
	models.LabelSpeechTranscription:  "Transcribing speech…",
	models.LabelSavingResults:        "Saving results…",
}

// StatusMessage renders a job status for people.
func StatusMessage(status *models.JobStatus) string {
	if status == nil {
		return "No transcription in progress"
	}

	switch status.Kind {
	case models.StatusQueued:
		return fmt.Sprintf("Queued (%d/%d)", status.Position, status.QueueSize)
	case models.StatusRunning:
		msg, ok := labelMessages[status.Label]
		if !ok {
			msg = "Transcription in progress…"
		}
		if status.Progress >= 0 {
			msg = fmt.Sprintf("%s %d%%", msg, status.Progress)
		}
		return msg
	case models.StatusCompleted:
		if status.Reason != "" {
			return "Completed without transcript: " + status.Reason
		}
		return "Transcription completed"
	case models.StatusFailed:
		if status.Label != "" {
			return fmt.Sprintf("Transcription failed during %s: %s", status.Label, status.Reason)
		}
		return "Transcription failed: " + status.Reason
	case models.StatusSuspended:
		return "Transcription suspended"
	default:
		return string(status.Kind)
	}
}

// FormatAge renders how long ago t was, relative to now.
func FormatAge(t, now time.Time) string {
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("%d h ago", int(diff.Hours()))
	}
	return t.Format("2006-01-02 15:04")
}
