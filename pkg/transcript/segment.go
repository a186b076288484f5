package transcript

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNegativeDuration marks a segment whose end precedes its start.
var ErrNegativeDuration = errors.New("segment ends before it starts")

// Word is one recognized token with its timing in seconds.
type Word struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
}

// EndTime is the time at which the word stops.
func (w Word) EndTime() float64 {
	return w.StartTime + w.Duration
}

// Segment is a span of speech from one speaker in one language.
type Segment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Language  string  `json:"language"`
	Words     []Word  `json:"words"`
}

// IsPunctuation reports whether the token attaches to the previous word.
func IsPunctuation(token string) bool {
	switch strings.TrimSpace(token) {
	case ".", ",", ":":
		return true
	}
	return false
}

// Text joins the words, without a space before punctuation tokens.
func (s Segment) Text() string {
	var sb strings.Builder
	for _, word := range s.Words {
		w := strings.TrimSpace(word.Text)
		if !IsPunctuation(w) {
			sb.WriteString(" ")
		}
		sb.WriteString(w)
	}
	return strings.TrimSpace(sb.String())
}

// Duration is EndTime - StartTime. Segments coming out of the parser have
// passed Validate, so the result is never negative there.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Validate checks the time invariant of the segment.
func (s Segment) Validate() error {
	if s.EndTime < s.StartTime {
		return fmt.Errorf("%w: speaker %q start=%.2f end=%.2f", ErrNegativeDuration, s.SpeakerID, s.StartTime, s.EndTime)
	}
	return nil
}

func (s Segment) clone() Segment {
	c := s
	if s.Words != nil {
		c.Words = append([]Word(nil), s.Words...)
	}
	return c
}
