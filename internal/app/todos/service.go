package todos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blogkit/backend/internal/docstore"
	"github.com/blogkit/backend/internal/events"
)

// Collection is the document-store collection backing todos.
const Collection = "todos"

var ErrTitleRequired = errors.New("title is required")

type Todo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	Title string `json:"title"`
	Done  *bool  `json:"done"`
}

// UpdateRequest carries a partial update: nil fields are left untouched.
type UpdateRequest struct {
	Title *string `json:"title"`
	Done  *bool   `json:"done"`
}

// Schema type-checks todo writes at the store layer.
func Schema() docstore.Schema {
	return docstore.Schema{Validate: func(fields map[string]any) error {
		if v, ok := fields["title"]; ok {
			if _, isString := v.(string); !isString {
				return fmt.Errorf("%w: title must be a string", docstore.ErrInvalidDocument)
			}
		}
		if v, ok := fields["done"]; ok {
			if _, isBool := v.(bool); !isBool {
				return fmt.Errorf("%w: done must be a boolean", docstore.ErrInvalidDocument)
			}
		}
		return nil
	}}
}

type Service struct {
	Store docstore.Store
	Feed  *events.Feed
}

func NewService(store docstore.Store, feed *events.Feed) *Service {
	return &Service{Store: store, Feed: feed}
}

func (s *Service) List(ctx context.Context) ([]Todo, error) {
	records, err := s.Store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	result := make([]Todo, 0, len(records))
	for _, rec := range records {
		result = append(result, fromRecord(rec))
	}
	return result, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Todo, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Todo{}, ErrTitleRequired
	}
	done := false
	if req.Done != nil {
		done = *req.Done
	}

	rec, err := s.Store.Create(ctx, Collection, map[string]any{
		"title": title,
		"done":  done,
	})
	if err != nil {
		return Todo{}, err
	}
	s.Feed.Record(Collection, rec.ID, events.ActionCreated)
	return fromRecord(rec), nil
}

func (s *Service) Get(ctx context.Context, id string) (Todo, error) {
	rec, err := s.Store.GetByID(ctx, Collection, id)
	if err != nil {
		return Todo{}, err
	}
	return fromRecord(rec), nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Todo, error) {
	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Done != nil {
		fields["done"] = *req.Done
	}

	rec, err := s.Store.UpdateByID(ctx, Collection, id, fields)
	if err != nil {
		return Todo{}, err
	}
	s.Feed.Record(Collection, rec.ID, events.ActionUpdated)
	return fromRecord(rec), nil
}

func (s *Service) Delete(ctx context.Context, id string) (Todo, error) {
	rec, err := s.Store.DeleteByID(ctx, Collection, id)
	if err != nil {
		return Todo{}, err
	}
	s.Feed.Record(Collection, rec.ID, events.ActionDeleted)
	return fromRecord(rec), nil
}

func fromRecord(rec docstore.Record) Todo {
	t := Todo{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	t.Title, _ = rec.Fields["title"].(string)
	t.Done, _ = rec.Fields["done"].(bool)
	return t
}
