package language

import (
	"errors"
	"testing"
)

func TestDefaultRoundTrip(t *testing.T) {
	table := Default()
	for _, short := range table.Codes() {
		long, ok := table.LongFor(short)
		if !ok {
			t.Fatalf("LongFor(%q) missing", short)
		}
		back, ok := table.ShortFor(long)
		if !ok || back != short {
			t.Fatalf("ShortFor(%q) = %q, %v, want %q", long, back, ok, short)
		}
	}
}

func TestLookups(t *testing.T) {
	table := Default()

	if long, ok := table.LongFor("en"); !ok || long != "eng" {
		t.Fatalf("LongFor(en) = %q, %v", long, ok)
	}
	if short, ok := table.ShortFor("fre"); !ok || short != "fr" {
		t.Fatalf("ShortFor(fre) = %q, %v", short, ok)
	}
	if _, ok := table.LongFor("de"); ok {
		t.Fatal("expected miss for de")
	}
	if table.IsSupported("de") {
		t.Fatal("de should not be supported")
	}
	if !table.IsSupported("ar") {
		t.Fatal("ar should be supported")
	}
}

func TestLongForName(t *testing.T) {
	table := Default()
	cases := map[string]string{
		"English": "eng",
		"arabic":  "ara",
		"fr":      "fre",
		"fre":     "fre",
	}
	for in, want := range cases {
		got, ok := table.LongForName(in)
		if !ok || got != want {
			t.Fatalf("LongForName(%q) = %q, %v, want %q", in, got, ok, want)
		}
	}
	if _, ok := table.LongForName("klingon"); ok {
		t.Fatal("expected miss for klingon")
	}
}

func TestNewRejectsDuplicateLongCode(t *testing.T) {
	entries := []Entry{
		{Short: "en", Long: "eng"},
		{Short: "us", Long: "eng"},
	}
	want := `duplicate language code: long code "eng" used by "en" and "us"`
	for range 5 {
		_, err := New(entries)
		if !errors.Is(err, ErrDuplicateCode) {
			t.Fatalf("err = %v, want %v", err, ErrDuplicateCode)
		}
		if err.Error() != want {
			t.Fatalf("err = %q, want %q", err, want)
		}
	}
}

func TestNewRejectsDuplicateName(t *testing.T) {
	_, err := New([]Entry{
		{Short: "en", Long: "eng", Name: "English"},
		{Short: "us", Long: "usa", Name: "english"},
	})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("err = %v, want %v", err, ErrDuplicateCode)
	}
}

func TestNewRejectsDuplicateShortCode(t *testing.T) {
	_, err := New([]Entry{
		{Short: "en", Long: "eng"},
		{Short: "en", Long: "enx"},
	})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("err = %v, want %v", err, ErrDuplicateCode)
	}
}

func TestNewRejectsEmptyCode(t *testing.T) {
	if _, err := New([]Entry{{Short: "en"}}); err == nil {
		t.Fatal("expected error for empty long code")
	}
}
