package transcript

import "strings"

// Section is the flattened unit persisted on a document.
type Section struct {
	TimecodeStart float64 `json:"timecode_start"`
	TimecodeStop  float64 `json:"timecode_stop"`
	Text          string  `json:"text"`
	SpeakerID     string  `json:"speaker_id"`
}

// Transcript is an ordered list of sections built from recognizer output.
type Transcript struct {
	sections []Section
}

// New returns an empty transcript ready for AppendSection.
func New() *Transcript {
	return &Transcript{}
}

// FromSections wraps already persisted sections.
func FromSections(sections []Section) *Transcript {
	return &Transcript{sections: append([]Section(nil), sections...)}
}

// AppendSection adds one section at the end.
func (t *Transcript) AppendSection(start, stop float64, text, speakerID string) *Transcript {
	t.sections = append(t.sections, Section{
		TimecodeStart: start,
		TimecodeStop:  stop,
		Text:          text,
		SpeakerID:     speakerID,
	})
	return t
}

// AppendSegment adds the segment as one section.
func (t *Transcript) AppendSegment(s Segment) *Transcript {
	return t.AppendSection(s.StartTime, s.EndTime, s.Text(), s.SpeakerID)
}

// Sections returns a copy of the sections.
func (t *Transcript) Sections() []Section {
	return append([]Section(nil), t.sections...)
}

// Len is the number of sections.
func (t *Transcript) Len() int {
	return len(t.sections)
}

// Text is the full text, one section per line.
func (t *Transcript) Text() string {
	lines := make([]string, 0, len(t.sections))
	for _, s := range t.sections {
		lines = append(lines, s.Text)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
