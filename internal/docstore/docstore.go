// Package docstore persists schemaless JSON documents per collection with
// store-assigned ids and timestamps.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Record is one stored document. Fields holds the JSON payload without the
// server-assigned id and timestamps.
type Record struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Schema validates writes to a collection. Validate receives only the fields
// being written, so it must treat every key as optional; required-at-create
// rules live in the resource services.
type Schema struct {
	Validate func(fields map[string]any) error
}

type Store interface {
	Create(ctx context.Context, collection string, fields map[string]any) (Record, error)
	List(ctx context.Context, collection string) ([]Record, error)
	GetByID(ctx context.Context, collection, id string) (Record, error)
	UpdateByID(ctx context.Context, collection, id string, fields map[string]any) (Record, error)
	DeleteByID(ctx context.Context, collection, id string) (Record, error)
}

const idLength = 22

// ValidID reports whether id matches the nuid format the store assigns.
// Anything else is treated as a not-found condition, never an error.
func ValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

func validateFields(schemas map[string]Schema, collection string, fields map[string]any) error {
	schema, ok := schemas[collection]
	if !ok {
		return ErrUnknownCollection
	}
	if schema.Validate == nil {
		return nil
	}
	return schema.Validate(fields)
}
