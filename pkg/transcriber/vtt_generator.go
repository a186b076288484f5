package transcriber

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/z-wentao/docscribe/pkg/transcript"
)

// WriteVTT renders the transcript as WebVTT for HTML5 players. Cues carry the
// speaker as a voice span.
func WriteVTT(w io.Writer, t *transcript.Transcript) error {
	bw := bufio.NewWriter(w)
	// the file must start with "WEBVTT"
	bw.WriteString("WEBVTT\n\n")

	index := 1
	for _, s := range t.Sections() {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.SpeakerID != "" {
			text = fmt.Sprintf("<v %s>%s", s.SpeakerID, text)
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			index, formatVTTTime(s.TimecodeStart), formatVTTTime(s.TimecodeStop), text)
		index++
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write vtt: %w", err)
	}
	return nil
}

// formatVTTTime is formatSRTTime with a dot before the milliseconds.
func formatVTTTime(seconds float64) string {
	h, m, s, ms := splitTimecode(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
