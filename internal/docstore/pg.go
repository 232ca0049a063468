package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nuid"
)

const createDocumentsSQL = `
CREATE TABLE IF NOT EXISTS documents (
  collection text NOT NULL,
  id text NOT NULL,
  doc jsonb NOT NULL DEFAULT '{}'::jsonb,
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, id)
)`

const createDocumentsIndexSQL = `
CREATE INDEX IF NOT EXISTS documents_collection_created_at_idx
ON documents (collection, created_at DESC)`

// PgStore keeps every collection in one JSONB-backed table.
type PgStore struct {
	Pool    *pgxpool.Pool
	Schemas map[string]Schema
	NewID   func() string
}

func NewPgStore(pool *pgxpool.Pool, schemas map[string]Schema) *PgStore {
	return &PgStore{
		Pool:    pool,
		Schemas: schemas,
		NewID:   nuid.Next,
	}
}

func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, createDocumentsSQL); err != nil {
		return err
	}
	if _, err := s.Pool.Exec(ctx, createDocumentsIndexSQL); err != nil {
		return err
	}
	return nil
}

func (s *PgStore) Create(ctx context.Context, collection string, fields map[string]any) (Record, error) {
	if err := validateFields(s.Schemas, collection, fields); err != nil {
		return Record{}, err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	rec := Record{ID: s.NewID(), Fields: fields}
	err = s.Pool.QueryRow(ctx,
		`INSERT INTO documents (collection, id, doc)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		collection, rec.ID, payload,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *PgStore) List(ctx context.Context, collection string) ([]Record, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, doc, created_at, updated_at
		 FROM documents
		 WHERE collection = $1
		 ORDER BY created_at DESC, id DESC`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *PgStore) GetByID(ctx context.Context, collection, id string) (Record, error) {
	if !ValidID(id) {
		return Record{}, ErrNotFound
	}
	row := s.Pool.QueryRow(ctx,
		`SELECT id, doc, created_at, updated_at
		 FROM documents
		 WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *PgStore) UpdateByID(ctx context.Context, collection, id string, fields map[string]any) (Record, error) {
	if !ValidID(id) {
		return Record{}, ErrNotFound
	}
	if err := validateFields(s.Schemas, collection, fields); err != nil {
		return Record{}, err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	// jsonb || is a shallow merge: keys absent from the input stay untouched.
	row := s.Pool.QueryRow(ctx,
		`UPDATE documents
		 SET doc = doc || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2
		 RETURNING id, doc, created_at, updated_at`,
		collection, id, payload,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *PgStore) DeleteByID(ctx context.Context, collection, id string) (Record, error) {
	if !ValidID(id) {
		return Record{}, ErrNotFound
	}
	row := s.Pool.QueryRow(ctx,
		`DELETE FROM documents
		 WHERE collection = $1 AND id = $2
		 RETURNING id, doc, created_at, updated_at`,
		collection, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var doc []byte
	if err := row.Scan(&rec.ID, &doc, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(doc, &rec.Fields); err != nil {
		return Record{}, err
	}
	return rec, nil
}
