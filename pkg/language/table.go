package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDuplicateCode is returned when two entries share a short code, a long
// code or a language name.
var ErrDuplicateCode = errors.New("duplicate language code")

// Entry maps one short (ISO 639-1) code to the long code used by the
// recognition service. Name is the English language name some recognizers
// report instead of a code.
type Entry struct {
	Short string `yaml:"short"`
	Long  string `yaml:"long"`
	Name  string `yaml:"name"`
}

// Table is a read-only bidirectional language code mapping.
type Table struct {
	shortToLong map[string]string
	longToShort map[string]string
	nameToLong  map[string]string
}

// DefaultEntries returns the languages the recognition service ships models for.
func DefaultEntries() []Entry {
	return []Entry{
		{Short: "ar", Long: "ara", Name: "arabic"},
		{Short: "en", Long: "eng", Name: "english"},
		{Short: "fr", Long: "fre", Name: "french"},
	}
}

// Default builds the table from DefaultEntries.
func Default() *Table {
	t, err := New(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return t
}

// New builds a table. The long-to-short direction is derived from the
// short-to-long one, so duplicates on either side are rejected.
func New(entries []Entry) (*Table, error) {
	t := &Table{
		shortToLong: make(map[string]string, len(entries)),
		longToShort: make(map[string]string, len(entries)),
		nameToLong:  make(map[string]string, len(entries)),
	}

	for _, e := range entries {
		short := strings.TrimSpace(e.Short)
		long := strings.TrimSpace(e.Long)
		if short == "" || long == "" {
			return nil, fmt.Errorf("invalid language entry %+v: empty code", e)
		}
		if _, ok := t.shortToLong[short]; ok {
			return nil, fmt.Errorf("%w: short code %q", ErrDuplicateCode, short)
		}
		t.shortToLong[short] = long
	}

	// walk entries, not the map, so errors name the first user first
	for _, e := range entries {
		short := strings.TrimSpace(e.Short)
		long := t.shortToLong[short]
		if other, ok := t.longToShort[long]; ok {
			return nil, fmt.Errorf("%w: long code %q used by %q and %q", ErrDuplicateCode, long, other, short)
		}
		t.longToShort[long] = short
	}

	for _, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" {
			continue
		}
		if other, ok := t.nameToLong[name]; ok {
			return nil, fmt.Errorf("%w: language name %q used by %q and %q", ErrDuplicateCode, name, other, strings.TrimSpace(e.Long))
		}
		t.nameToLong[name] = strings.TrimSpace(e.Long)
	}

	return t, nil
}

// LongFor returns the long code for a short one.
func (t *Table) LongFor(short string) (string, bool) {
	long, ok := t.shortToLong[strings.TrimSpace(short)]
	return long, ok
}

// ShortFor returns the short code for a long one.
func (t *Table) ShortFor(long string) (string, bool) {
	short, ok := t.longToShort[strings.TrimSpace(long)]
	return short, ok
}

// LongForName resolves a language name ("english") or, failing that, a short
// or long code to the long code.
func (t *Table) LongForName(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if long, ok := t.nameToLong[key]; ok {
		return long, true
	}
	if long, ok := t.shortToLong[key]; ok {
		return long, true
	}
	if _, ok := t.longToShort[key]; ok {
		return key, true
	}
	return "", false
}

// IsSupported reports whether a model exists for the short code.
func (t *Table) IsSupported(short string) bool {
	_, ok := t.LongFor(short)
	return ok
}

// Codes returns the supported short codes, sorted.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.shortToLong))
	for short := range t.shortToLong {
		codes = append(codes, short)
	}
	sort.Strings(codes)
	return codes
}
