package transcript

import (
	"reflect"
	"slices"
	"testing"
)

func timed(text string, start, dur float64) Word {
	return Word{Text: text, StartTime: start, Duration: dur}
}

func TestSplitWithinThreshold(t *testing.T) {
	s := Segment{
		SpeakerID: "FS1",
		StartTime: 0,
		EndTime:   4,
		Language:  "eng",
		Words:     []Word{timed("hello", 0, 1), timed("world", 1, 1)},
	}
	parts := slices.Collect(s.SplitByMaxDuration(10))
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1", len(parts))
	}
	if !reflect.DeepEqual(parts[0], s) {
		t.Fatalf("parts[0] = %+v, want %+v", parts[0], s)
	}

	parts[0].Words[0].Text = "changed"
	if s.Words[0].Text != "hello" {
		t.Fatal("split result shares the word slice with the source")
	}
}

func TestSplitCutsAtWordBoundary(t *testing.T) {
	s := Segment{
		SpeakerID: "MS2",
		StartTime: 0,
		EndTime:   12,
		Language:  "fre",
		Words: []Word{
			timed("un", 0, 2),
			timed("deux", 2, 2),
			timed("trois", 4, 2),
			timed("quatre", 6, 2),
			timed("cinq", 8, 2),
			timed("six", 10, 2),
		},
	}
	parts := slices.Collect(s.SplitByMaxDuration(5))

	if len(parts) != 3 {
		t.Fatalf("len(parts) = %d, want 3", len(parts))
	}
	wantBounds := [][2]float64{{0, 4}, {4, 8}, {8, 12}}
	for i, p := range parts {
		if p.StartTime != wantBounds[i][0] || p.EndTime != wantBounds[i][1] {
			t.Fatalf("parts[%d] = [%v, %v], want %v", i, p.StartTime, p.EndTime, wantBounds[i])
		}
		if p.SpeakerID != "MS2" || p.Language != "fre" {
			t.Fatalf("parts[%d] lost speaker or language: %+v", i, p)
		}
		if p.Duration() > 5 {
			t.Fatalf("parts[%d] duration = %v, exceeds 5", i, p.Duration())
		}
	}
	assertWordsPreserved(t, s, parts)
}

func TestSplitKeepsPunctuationAttached(t *testing.T) {
	s := Segment{
		StartTime: 0,
		EndTime:   7,
		Words: []Word{
			timed("one", 0, 2),
			timed("two", 2, 2),
			timed(".", 4, 0.5),
			timed(",", 4.5, 0.5),
			timed("three", 5, 2),
		},
	}
	parts := slices.Collect(s.SplitByMaxDuration(4))

	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(parts))
	}
	if got := parts[0].Text(); got != "one two.," {
		t.Fatalf("parts[0].Text() = %q, want %q", got, "one two.,")
	}
	if got := parts[1].Text(); got != "three" {
		t.Fatalf("parts[1].Text() = %q, want %q", got, "three")
	}
	if parts[1].StartTime != 5 {
		t.Fatalf("parts[1].StartTime = %v, want 5", parts[1].StartTime)
	}
	for _, p := range parts {
		if len(p.Words) > 0 && IsPunctuation(p.Words[0].Text) {
			t.Fatalf("sub-segment starts with punctuation: %+v", p)
		}
	}
	assertWordsPreserved(t, s, parts)
}

func TestSplitIsRestartable(t *testing.T) {
	s := Segment{
		StartTime: 0,
		EndTime:   6,
		Words:     []Word{timed("a", 0, 2), timed("b", 2, 2), timed("c", 4, 2)},
	}
	seq := s.SplitByMaxDuration(3)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second walk = %+v, want %+v", second, first)
	}
}

func TestSplitStopsEarly(t *testing.T) {
	s := Segment{
		StartTime: 0,
		EndTime:   6,
		Words:     []Word{timed("a", 0, 2), timed("b", 2, 2), timed("c", 4, 2)},
	}
	n := 0
	for range s.SplitByMaxDuration(1) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("iterations = %d, want 1", n)
	}
}

func TestSplitWithoutWords(t *testing.T) {
	s := Segment{StartTime: 0, EndTime: 100}
	parts := slices.Collect(s.SplitByMaxDuration(30))
	if len(parts) != 1 || parts[0].EndTime != 100 {
		t.Fatalf("parts = %+v, want the segment itself", parts)
	}
}

func assertWordsPreserved(t *testing.T, s Segment, parts []Segment) {
	t.Helper()
	var got []Word
	for _, p := range parts {
		got = append(got, p.Words...)
	}
	if !reflect.DeepEqual(got, s.Words) {
		t.Fatalf("words = %+v, want %+v", got, s.Words)
	}
}

func TestSplitTrailingSilence(t *testing.T) {
	s := Segment{
		StartTime: 0,
		EndTime:   40,
		Words:     []Word{timed("a", 0, 5), timed("b", 10, 5)},
	}
	parts := slices.Collect(s.SplitByMaxDuration(30))

	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1", len(parts))
	}
	if parts[0].StartTime != 0 || parts[0].EndTime != 15 {
		t.Fatalf("parts[0] = [%v, %v], want [0, 15]", parts[0].StartTime, parts[0].EndTime)
	}
	assertWordsPreserved(t, s, parts)
}

func TestSplitTrailingSilenceAfterCut(t *testing.T) {
	s := Segment{
		StartTime: 0,
		EndTime:   50,
		Words:     []Word{timed("a", 0, 5), timed("b", 10, 5), timed("c", 12, 2)},
	}
	parts := slices.Collect(s.SplitByMaxDuration(10))

	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(parts))
	}
	for i, p := range parts {
		if p.Duration() > 10 {
			t.Fatalf("parts[%d] = [%v, %v], exceeds 10", i, p.StartTime, p.EndTime)
		}
	}
	if parts[1].StartTime != 10 || parts[1].EndTime != 15 {
		t.Fatalf("parts[1] = [%v, %v], want [10, 15]", parts[1].StartTime, parts[1].EndTime)
	}
	assertWordsPreserved(t, s, parts)
}
