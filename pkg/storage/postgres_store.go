package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
    repository  TEXT        NOT NULL,
    ref         TEXT        NOT NULL,
    doc_type    TEXT        NOT NULL DEFAULT '',
    title       TEXT        NOT NULL DEFAULT '',
    properties  JSONB       NOT NULL DEFAULT '{}',
    facets      TEXT[]      NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (repository, ref)
)`

// PostgresStore persists documents in a single table. Each save is one
// UPSERT of the whole row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the pool, pings it and creates the table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.ExecContext(ctx, documentsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Put(ctx context.Context, doc *Document) error {
	props, err := json.Marshal(doc.Properties)
	if err != nil {
		return fmt.Errorf("encode properties of %s: %w", doc.Ref, err)
	}
	facets := doc.Facets
	if facets == nil {
		facets = []string{}
	}

	const query = `
    INSERT INTO documents (
        repository, ref, doc_type, title, properties, facets, created_at, updated_at
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT (repository, ref)
    DO UPDATE SET
        doc_type = EXCLUDED.doc_type,
        title = EXCLUDED.title,
        properties = EXCLUDED.properties,
        facets = EXCLUDED.facets,
        updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		doc.Repository,
		doc.Ref,
		doc.Type,
		doc.Title,
		props,
		pq.Array(facets),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.Ref, err)
	}
	return nil
}

const selectDocument = `
    SELECT repository, ref, doc_type, title, properties, facets, created_at, updated_at
    FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc   Document
		props []byte
	)
	err := row.Scan(
		&doc.Repository,
		&doc.Ref,
		&doc.Type,
		&doc.Title,
		&props,
		pq.Array(&doc.Facets),
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(props, &doc.Properties); err != nil {
		return nil, fmt.Errorf("decode properties of %s: %w", doc.Ref, err)
	}
	return &doc, nil
}

func (s *PostgresStore) Load(ctx context.Context, repository, ref string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, selectDocument+` WHERE repository = $1 AND ref = $2`, repository, ref)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("query document %s: %w", ref, err)
	}
	return doc, nil
}

func (s *PostgresStore) List(ctx context.Context, repository string, limit int) ([]*Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		selectDocument+` WHERE repository = $1 ORDER BY created_at DESC LIMIT $2`, repository, limit)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Remove(ctx context.Context, repository, ref string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE repository = $1 AND ref = $2`, repository, ref)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", ref, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", ref, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
