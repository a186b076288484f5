package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HybridStore puts a cache (Redis) in front of a durable backend (Postgres).
// Writes land in the cache at once and reach the durable backend through a
// batching sync goroutine; reads fall back to the durable backend on a miss
// and warm the cache.
type HybridStore struct {
	cache   Backend
	durable Backend
	log     zerolog.Logger

	syncQueue chan *Document
	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// pending counts queued durable writes per document; removed holds
	// deletions that still have older writes queued
	mu      sync.Mutex
	pending map[string]int
	removed map[string]time.Time

	batchSize     int
	flushInterval time.Duration
}

// NewHybridStore starts the background sync goroutine.
func NewHybridStore(cache, durable Backend, log zerolog.Logger) *HybridStore {
	s := &HybridStore{
		cache:         cache,
		durable:       durable,
		log:           log.With().Str("component", "hybrid_store").Logger(),
		syncQueue:     make(chan *Document, 100),
		stopCh:        make(chan struct{}),
		pending:       make(map[string]int),
		removed:       make(map[string]time.Time),
		done:          make(chan struct{}),
		batchSize:     50,
		flushInterval: 5 * time.Second,
	}
	go s.syncWorker()
	return s
}

func (s *HybridStore) Load(ctx context.Context, repository, ref string) (*Document, error) {
	// 1. cache hit
	doc, err := s.cache.Load(ctx, repository, ref)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrDocumentNotFound) {
		s.log.Warn().Err(err).Str("ref", ref).Msg("cache read failed, falling back")
	}

	// 2. durable backend
	doc, err = s.durable.Load(ctx, repository, ref)
	if err != nil {
		return nil, err
	}

	// 3. warm the cache
	if err := s.cache.Put(ctx, doc.Clone()); err != nil {
		s.log.Warn().Err(err).Str("ref", ref).Msg("cache backfill failed")
	}
	return doc, nil
}

// Put writes the cache and queues the durable write. When the cache is
// down the durable write happens inline.
func (s *HybridStore) Put(ctx context.Context, doc *Document) error {
	key := memoryKey(doc.Repository, doc.Ref)
	s.track(key)
	if err := s.cache.Put(ctx, doc); err != nil {
		s.untrack(key)
		s.log.Warn().Err(err).Str("ref", doc.Ref).Msg("cache write failed, writing through")
		return s.durable.Put(ctx, doc)
	}
	s.enqueueSync(ctx, doc.Clone())
	return nil
}

func (s *HybridStore) Remove(ctx context.Context, repository, ref string) error {
	key := memoryKey(repository, ref)
	s.mu.Lock()
	if s.pending[key] > 0 {
		s.removed[key] = time.Now()
	}
	s.mu.Unlock()

	cacheErr := s.cache.Remove(ctx, repository, ref)
	if cacheErr != nil && !errors.Is(cacheErr, ErrDocumentNotFound) {
		s.log.Warn().Err(cacheErr).Str("ref", ref).Msg("cache delete failed")
	}
	err := s.durable.Remove(ctx, repository, ref)
	if errors.Is(err, ErrDocumentNotFound) && cacheErr == nil {
		// created but not synced yet
		return nil
	}
	return err
}

// List reads the durable backend, which holds every document.
func (s *HybridStore) List(ctx context.Context, repository string, limit int) ([]*Document, error) {
	docs, err := s.durable.List(ctx, repository, limit)
	if err != nil {
		s.log.Warn().Err(err).Msg("durable list failed, using cache")
		return s.cache.List(ctx, repository, limit)
	}
	return docs, nil
}

// Close flushes pending writes, waiting at most five seconds, then closes
// both backends.
func (s *HybridStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCh) })

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.log.Warn().Int("pending", len(s.syncQueue)).Msg("sync flush timed out")
	}

	return errors.Join(s.cache.Close(), s.durable.Close())
}

func (s *HybridStore) enqueueSync(ctx context.Context, doc *Document) {
	select {
	case s.syncQueue <- doc:
	default:
		// queue full, write inline
		s.log.Warn().Str("ref", doc.Ref).Msg("sync queue full, writing inline")
		if err := s.durable.Put(ctx, doc); err != nil {
			s.log.Error().Err(err).Str("ref", doc.Ref).Msg("durable write failed")
		}
		s.untrack(memoryKey(doc.Repository, doc.Ref))
	}
}

// syncWorker flushes every batchSize documents or every flushInterval.
func (s *HybridStore) syncWorker() {
	defer close(s.done)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]*Document, 0, s.batchSize)
	for {
		select {
		case doc := <-s.syncQueue:
			batch = append(batch, doc)
			if len(batch) >= s.batchSize {
				s.batchSave(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.batchSave(batch)
				batch = batch[:0]
			}

		case <-s.stopCh:
			// drain what is already queued
			for {
				select {
				case doc := <-s.syncQueue:
					batch = append(batch, doc)
				default:
					s.batchSave(batch)
					return
				}
			}
		}
	}
}

func (s *HybridStore) batchSave(docs []*Document) {
	if len(docs) == 0 {
		return
	}

	// later writes of the same document win
	latest := make(map[string]*Document, len(docs))
	order := make([]string, 0, len(docs))
	for _, d := range docs {
		key := memoryKey(d.Repository, d.Ref)
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = d
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	saved := 0
	for _, key := range order {
		d := latest[key]
		if s.removedSince(key, d.UpdatedAt) {
			continue
		}
		if err := s.durable.Put(ctx, d); err != nil {
			s.log.Error().Err(err).Str("ref", d.Ref).Msg("durable sync failed")
			continue
		}
		saved++
	}
	for _, d := range docs {
		s.untrack(memoryKey(d.Repository, d.Ref))
	}
	s.log.Debug().Int("saved", saved).Int("total", len(order)).Msg("synced documents")
}

func (s *HybridStore) track(key string) {
	s.mu.Lock()
	s.pending[key]++
	s.mu.Unlock()
}

// untrack drops the tombstone once no older write is left in the queue.
func (s *HybridStore) untrack(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[key]--; s.pending[key] <= 0 {
		delete(s.pending, key)
		delete(s.removed, key)
	}
}

func (s *HybridStore) removedSince(key string, updated time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.removed[key]
	if !ok {
		return false
	}
	if updated.After(at) {
		delete(s.removed, key)
		return false
	}
	return true
}
