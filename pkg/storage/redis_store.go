package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as one JSON value, so a save is a single
// SET. A sorted set per repository indexes documents by creation time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // 0 keeps documents forever
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,     // e.g. "localhost:6379"
		Password: password, // empty for no password
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// docKey renders "docscribe:doc:{repository}:{ref}".
func docKey(repository, ref string) string {
	return fmt.Sprintf("docscribe:doc:%s:%s", repository, ref)
}

func indexKey(repository string) string {
	return fmt.Sprintf("docscribe:docs:%s", repository)
}

func (rs *RedisStore) Load(ctx context.Context, repository, ref string) (*Document, error) {
	data, err := rs.client.Get(ctx, docKey(repository, ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", ref, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", ref, err)
	}
	return &doc, nil
}

func (rs *RedisStore) Put(ctx context.Context, doc *Document) error {
	// 1. serialize
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.Ref, err)
	}

	// 2. write the whole document with its TTL
	if err := rs.client.Set(ctx, docKey(doc.Repository, doc.Ref), data, rs.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", doc.Ref, err)
	}

	// 3. index by creation time for List
	if err := rs.client.ZAdd(ctx, indexKey(doc.Repository), redis.Z{
		Score:  float64(doc.CreatedAt.Unix()),
		Member: doc.Ref,
	}).Err(); err != nil {
		return fmt.Errorf("redis index %s: %w", doc.Ref, err)
	}
	return nil
}

func (rs *RedisStore) Remove(ctx context.Context, repository, ref string) error {
	deleted, err := rs.client.Del(ctx, docKey(repository, ref)).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", ref, err)
	}
	rs.client.ZRem(ctx, indexKey(repository), ref)
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	return nil
}

func (rs *RedisStore) List(ctx context.Context, repository string, limit int) ([]*Document, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	refs, err := rs.client.ZRevRange(ctx, indexKey(repository), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis index range: %w", err)
	}

	docs := make([]*Document, 0, len(refs))
	for _, ref := range refs {
		doc, err := rs.Load(ctx, repository, ref)
		if errors.Is(err, ErrDocumentNotFound) {
			// expired, drop it from the index
			rs.client.ZRem(ctx, indexKey(repository), ref)
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
