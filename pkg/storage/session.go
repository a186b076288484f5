package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DocumentStore binds a Backend to one repository and hands out sessions.
type DocumentStore struct {
	backend    Backend
	repository string
}

// NewDocumentStore serves the documents of one repository from backend.
func NewDocumentStore(backend Backend, repository string) *DocumentStore {
	return &DocumentStore{backend: backend, repository: repository}
}

// Repository is the name every document of this store lives under.
func (s *DocumentStore) Repository() string {
	return s.repository
}

func (s *DocumentStore) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{
		ctx:   ctx,
		store: s,
		docs:  make(map[string]*Document),
		dirty: make(map[string]bool),
	}, nil
}

// Create stores a new document. Timestamps and the repository are filled in.
func (s *DocumentStore) Create(ctx context.Context, doc *Document) error {
	now := time.Now()
	doc.Repository = s.repository
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Properties == nil {
		doc.Properties = make(map[string]json.RawMessage)
	}
	if err := s.backend.Put(ctx, doc.Clone()); err != nil {
		return fmt.Errorf("create document %s: %w", doc.Ref, err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, ref string) (*Document, error) {
	return s.backend.Load(ctx, s.repository, ref)
}

func (s *DocumentStore) Delete(ctx context.Context, ref string) error {
	return s.backend.Remove(ctx, s.repository, ref)
}

func (s *DocumentStore) List(ctx context.Context, limit int) ([]*Document, error) {
	return s.backend.List(ctx, s.repository, limit)
}

func (s *DocumentStore) Close() error {
	return s.backend.Close()
}

type session struct {
	ctx   context.Context
	store *DocumentStore

	mu     sync.Mutex
	docs   map[string]*Document
	dirty  map[string]bool
	closed bool
}

var errSessionClosed = errors.New("session closed")

// load returns the session's working copy of the document.
func (s *session) load(ref string) (*Document, error) {
	if s.closed {
		return nil, errSessionClosed
	}
	if doc, ok := s.docs[ref]; ok {
		return doc, nil
	}
	doc, err := s.store.backend.Load(s.ctx, s.store.repository, ref)
	if err != nil {
		return nil, err
	}
	doc = doc.Clone()
	s.docs[ref] = doc
	return doc, nil
}

func (s *session) Exists(ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.load(ref)
	if errors.Is(err, ErrDocumentNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *session) Get(ref, path string, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ref)
	if err != nil {
		return err
	}
	raw, ok := doc.Properties[path]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %s on %s", ErrPropertyNotFound, path, ref)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s on %s: %w", path, ref, err)
	}
	return nil
}

func (s *session) Set(ref, path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ref)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s on %s: %w", path, ref, err)
	}
	doc.Properties[path] = raw
	s.dirty[ref] = true
	return nil
}

func (s *session) HasFacet(ref, facet string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ref)
	if err != nil {
		return false, err
	}
	return doc.HasFacet(facet), nil
}

func (s *session) AddFacet(ref, facet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ref)
	if err != nil {
		return err
	}
	if !doc.HasFacet(facet) {
		doc.Facets = append(doc.Facets, facet)
		s.dirty[ref] = true
	}
	return nil
}

func (s *session) Save(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ref)
	if err != nil {
		return err
	}
	if !s.dirty[ref] {
		return nil
	}
	doc.UpdatedAt = time.Now()
	if err := s.store.backend.Put(s.ctx, doc.Clone()); err != nil {
		return fmt.Errorf("save document %s: %w", ref, err)
	}
	delete(s.dirty, ref)
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.docs = nil
	s.dirty = nil
	return nil
}
