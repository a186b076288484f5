package transcriber

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/z-wentao/docscribe/pkg/language"
	"github.com/z-wentao/docscribe/pkg/transcript"
)

func parseFixture(t *testing.T, name string) *AudioDoc {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	doc, err := ParseAudioDoc(f)
	if err != nil {
		t.Fatalf("ParseAudioDoc(%s) error = %v", name, err)
	}
	return doc
}

func TestArabicTranscription(t *testing.T) {
	doc := parseFixture(t, "ar_news_trans.xml")
	segments := doc.TranscriptSegments()
	if len(segments) != 7 {
		t.Fatalf("len(segments) = %d, want 7", len(segments))
	}
	s := segments[1]
	if s.StartTime != 3.37 || s.EndTime != 18.66 {
		t.Fatalf("segments[1] = [%v, %v], want [3.37, 18.66]", s.StartTime, s.EndTime)
	}
	if s.SpeakerID != "FS1" {
		t.Fatalf("segments[1].SpeakerID = %q, want FS1", s.SpeakerID)
	}
	if s.Text() == "" {
		t.Fatal("segments[1].Text() is empty")
	}

	tr := doc.AsTranscript(DefaultMaxSegmentDuration)
	if tr.Len() != 7 {
		t.Fatalf("transcript sections = %d, want 7", tr.Len())
	}
}

func TestEnglishTranscription(t *testing.T) {
	doc := parseFixture(t, "en_fake_trans.xml")
	segments := doc.TranscriptSegments()
	if len(segments) != 1 {
		t.Fatalf("len(segments) = %d, want 1", len(segments))
	}
	s := segments[0]
	if s.StartTime != 3.37 || s.EndTime != 18.66 || s.SpeakerID != "FS1" {
		t.Fatalf("segment = %+v", s)
	}
	want := "This is a test, with inadequate punctuation. Indeed."
	if got := s.Text(); got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}

	tr := doc.AsTranscript(DefaultMaxSegmentDuration)
	if tr.Len() != 1 {
		t.Fatalf("transcript sections = %d, want 1", tr.Len())
	}
	if tr.Text() != want {
		t.Fatalf("transcript text = %q, want %q", tr.Text(), want)
	}
}

func TestEnglishTranscriptionSplit(t *testing.T) {
	doc := parseFixture(t, "en_fake_trans.xml")
	sections := doc.AsTranscript(5).Sections()
	if len(sections) < 2 {
		t.Fatalf("sections = %d, want at least 2", len(sections))
	}
	var texts []string
	for _, s := range sections {
		if strings.HasPrefix(s.Text, ".") || strings.HasPrefix(s.Text, ",") {
			t.Fatalf("section starts with punctuation: %q", s.Text)
		}
		texts = append(texts, s.Text)
	}
	if got, want := strings.Join(texts, " "), "This is a test, with inadequate punctuation. Indeed."; got != want {
		t.Fatalf("joined = %q, want %q", got, want)
	}
}

func TestLanguageIDOutput(t *testing.T) {
	doc := parseFixture(t, "ar_news_lid.xml")
	lang, ok := doc.Language()
	if !ok || lang != "ara" {
		t.Fatalf("Language() = %q, %v, want ara", lang, ok)
	}
}

func TestLanguagePicksLongestSegment(t *testing.T) {
	doc := parseFixture(t, "mixed_lid.xml")
	long, ok := doc.Language()
	if !ok || long != "fre" {
		t.Fatalf("Language() = %q, %v, want fre", long, ok)
	}
	short, ok := language.Default().ShortFor(long)
	if !ok || short != "fr" {
		t.Fatalf("ShortFor(%q) = %q, %v, want fr", long, short, ok)
	}
}

func TestLanguageTieKeepsFirst(t *testing.T) {
	doc := &AudioDoc{Segments: []speechSegment{
		{StartTime: 0, EndTime: 3, Language: "eng"},
		{StartTime: 3, EndTime: 6, Language: "fre"},
	}}
	if got, _ := doc.Language(); got != "eng" {
		t.Fatalf("Language() = %q, want eng", got)
	}
}

func TestLanguageWithoutSegments(t *testing.T) {
	doc, err := ParseAudioDoc(strings.NewReader(`<AudioDoc><SegmentList/></AudioDoc>`))
	if err != nil {
		t.Fatalf("ParseAudioDoc() error = %v", err)
	}
	if lang, ok := doc.Language(); ok {
		t.Fatalf("Language() = %q, true, want no detection", lang)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseAudioDoc(strings.NewReader("<html>oops"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestParseRejectsNegativeDuration(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "negative_duration.xml"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	_, err = ParseAudioDoc(f)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if !errors.Is(err, transcript.ErrNegativeDuration) {
		t.Fatalf("err = %v, want it to wrap %v", err, transcript.ErrNegativeDuration)
	}
}
