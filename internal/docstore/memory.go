package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nuid"
)

// MemStore is an in-memory Store with the same contract as PgStore,
// including schema validation, id format checks and creation-time ordering.
// It backs the handler and service tests.
type MemStore struct {
	NewID func() string
	Now   func() time.Time

	mu      sync.Mutex
	schemas map[string]Schema
	seq     int
	docs    map[string][]memDoc
}

type memDoc struct {
	rec Record
	seq int
}

func NewMemStore(schemas map[string]Schema) *MemStore {
	return &MemStore{
		NewID:   nuid.Next,
		Now:     func() time.Time { return time.Now().UTC() },
		schemas: schemas,
		docs:    map[string][]memDoc{},
	}
}

func (s *MemStore) Create(_ context.Context, collection string, fields map[string]any) (Record, error) {
	if err := validateFields(s.schemas, collection, fields); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	s.seq++
	rec := Record{
		ID:        s.NewID(),
		Fields:    cloneFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.docs[collection] = append(s.docs[collection], memDoc{rec: rec, seq: s.seq})
	return cloneRecord(rec), nil
}

func (s *MemStore) List(_ context.Context, collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]memDoc, len(s.docs[collection]))
	copy(docs, s.docs[collection])
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].rec.CreatedAt.Equal(docs[j].rec.CreatedAt) {
			return docs[i].rec.CreatedAt.After(docs[j].rec.CreatedAt)
		}
		return docs[i].seq > docs[j].seq
	})

	records := make([]Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, cloneRecord(d.rec))
	}
	return records, nil
}

func (s *MemStore) GetByID(_ context.Context, collection, id string) (Record, error) {
	if !ValidID(id) {
		return Record{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.docs[collection] {
		if d.rec.ID == id {
			return cloneRecord(d.rec), nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *MemStore) UpdateByID(_ context.Context, collection, id string, fields map[string]any) (Record, error) {
	if !ValidID(id) {
		return Record{}, ErrNotFound
	}
	if err := validateFields(s.schemas, collection, fields); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.docs[collection]
	for i := range docs {
		if docs[i].rec.ID != id {
			continue
		}
		for k, v := range fields {
			docs[i].rec.Fields[k] = v
		}
		docs[i].rec.UpdatedAt = s.Now()
		return cloneRecord(docs[i].rec), nil
	}
	return Record{}, ErrNotFound
}

func (s *MemStore) DeleteByID(_ context.Context, collection, id string) (Record, error) {
	if !ValidID(id) {
		return Record{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.docs[collection]
	for i := range docs {
		if docs[i].rec.ID != id {
			continue
		}
		removed := docs[i].rec
		s.docs[collection] = append(docs[:i], docs[i+1:]...)
		return cloneRecord(removed), nil
	}
	return Record{}, ErrNotFound
}

func cloneFields(fields map[string]any) map[string]any {
	cloned := make(map[string]any, len(fields))
	for k, v := range fields {
		cloned[k] = v
	}
	return cloned
}

func cloneRecord(rec Record) Record {
	rec.Fields = cloneFields(rec.Fields)
	return rec
}
