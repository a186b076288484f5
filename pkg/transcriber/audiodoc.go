package transcriber

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/z-wentao/docscribe/pkg/transcript"
)

// AudioDoc is the XML document returned by the recognizer for both the
// language detection and the transcription methods.
type AudioDoc struct {
	XMLName  xml.Name        `xml:"AudioDoc"`
	Segments []speechSegment `xml:"SegmentList>SpeechSegment"`
}

type speechSegment struct {
	SpeakerID string     `xml:"spkid,attr"`
	StartTime float64    `xml:"stime,attr"`
	EndTime   float64    `xml:"etime,attr"`
	Language  string     `xml:"lang,attr"`
	Words     []wordNode `xml:"Word"`
}

type wordNode struct {
	Text      string  `xml:",chardata"`
	StartTime float64 `xml:"stime,attr"`
	Duration  float64 `xml:"dur,attr"`
}

// ParseAudioDoc decodes and validates a recognizer response.
func ParseAudioDoc(r io.Reader) (*AudioDoc, error) {
	var doc AudioDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	for i, s := range doc.Segments {
		if err := s.toSegment().Validate(); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("segment %d: %w", i, err)}
		}
	}
	return &doc, nil
}

// TranscriptSegments converts the response to the transcript model.
func (d *AudioDoc) TranscriptSegments() []transcript.Segment {
	out := make([]transcript.Segment, 0, len(d.Segments))
	for _, s := range d.Segments {
		out = append(out, s.toSegment())
	}
	return out
}

// Language returns the language of the longest segment. The first one wins
// a tie. ok is false when the document holds no segment.
func (d *AudioDoc) Language() (string, bool) {
	var longest *transcript.Segment
	for _, s := range d.TranscriptSegments() {
		if longest == nil || longest.Duration() < s.Duration() {
			longest = &s
		}
	}
	if longest == nil || longest.Language == "" {
		return "", false
	}
	return longest.Language, true
}

// AsTranscript splits every segment to at most maxDuration seconds and
// flattens the result to sections, in document order.
func (d *AudioDoc) AsTranscript(maxDuration float64) *transcript.Transcript {
	t := transcript.New()
	for _, s := range d.TranscriptSegments() {
		for part := range s.SplitByMaxDuration(maxDuration) {
			t.AppendSegment(part)
		}
	}
	return t
}

func (s speechSegment) toSegment() transcript.Segment {
	seg := transcript.Segment{
		SpeakerID: s.SpeakerID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Language:  s.Language,
		Words:     make([]transcript.Word, 0, len(s.Words)),
	}
	for _, w := range s.Words {
		seg.Words = append(seg.Words, transcript.Word{
			Text:      w.Text,
			StartTime: w.StartTime,
			Duration:  w.Duration,
		})
	}
	return seg
}
