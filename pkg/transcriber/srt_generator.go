package transcriber

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/z-wentao/docscribe/pkg/transcript"
)

// WriteSRT renders the transcript sections as SubRip cues.
// Sections with no text are skipped and do not consume a cue number.
func WriteSRT(w io.Writer, t *transcript.Transcript) error {
	bw := bufio.NewWriter(w)
	index := 1
	for _, s := range t.Sections() {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		// 1
		// 00:00:03,370 --> 00:00:18,660
		// text
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			index, formatSRTTime(s.TimecodeStart), formatSRTTime(s.TimecodeStop), text)
		index++
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// formatSRTTime formats seconds as HH:MM:SS,mmm, e.g. 65.5 -> 00:01:05,500.
func formatSRTTime(seconds float64) string {
	h, m, s, ms := splitTimecode(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func splitTimecode(seconds float64) (h, m, s, ms int) {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds*1000 + 0.5)
	ms = total % 1000
	total /= 1000
	return total / 3600, (total % 3600) / 60, total % 60, ms
}
