package storage

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrPropertyNotFound = errors.New("property not found")
)

// Document is a host document: typed properties keyed by "schema:field"
// paths, plus a set of facets.
type Document struct {
	Repository string                     `json:"repository"`
	Ref        string                     `json:"ref"`
	Type       string                     `json:"type"`
	Title      string                     `json:"title,omitempty"`
	Properties map[string]json.RawMessage `json:"properties"`
	Facets     []string                   `json:"facets"`
	CreatedAt  time.Time                  `json:"created_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// HasFacet reports whether the facet is set.
func (d *Document) HasFacet(facet string) bool {
	return slices.Contains(d.Facets, facet)
}

// Clone returns a deep copy, so sessions never share maps with a backend.
func (d *Document) Clone() *Document {
	c := *d
	c.Properties = make(map[string]json.RawMessage, len(d.Properties))
	for k, v := range d.Properties {
		c.Properties[k] = append(json.RawMessage(nil), v...)
	}
	c.Facets = slices.Clone(d.Facets)
	return &c
}

// Backend persists whole documents. Put replaces the stored document in one
// write, which is what makes concurrent saves of one document safe.
type Backend interface {
	Load(ctx context.Context, repository, ref string) (*Document, error)
	Put(ctx context.Context, doc *Document) error
	Remove(ctx context.Context, repository, ref string) error
	// List returns the most recent documents first.
	List(ctx context.Context, repository string, limit int) ([]*Document, error)
	Close() error
}

// Session is a unit of work on the store. Writes stay in the session until
// Save; Close drops anything not saved.
type Session interface {
	Exists(ref string) (bool, error)
	// Get decodes the property into dst. It returns ErrPropertyNotFound when
	// the property has never been set.
	Get(ref, path string, dst any) error
	Set(ref, path string, value any) error
	HasFacet(ref, facet string) (bool, error)
	AddFacet(ref, facet string) error
	Save(ref string) error
	Close() error
}

// Store is the document store the transcription pipeline works against.
type Store interface {
	Open(ctx context.Context) (Session, error)
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, ref string) (*Document, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context, limit int) ([]*Document, error)
	Close() error
}
