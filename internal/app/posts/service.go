package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blogkit/backend/internal/docstore"
	"github.com/blogkit/backend/internal/events"
)

// Collection is the document-store collection backing blog posts.
const Collection = "posts"

var ErrTitleRequired = errors.New("title is required")

// MediaTypes enumerates the attachment kinds the store accepts.
var MediaTypes = map[string]bool{
	"image": true,
	"video": true,
	"audio": true,
}

type Media struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type Post struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	CoverImage string    `json:"coverImage"`
	Media      []Media   `json:"media"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	CoverImage string   `json:"coverImage"`
	Media      []Media  `json:"media"`
}

// UpdateRequest carries a partial update: nil fields are left untouched.
type UpdateRequest struct {
	Title      *string   `json:"title"`
	Content    *string   `json:"content"`
	Tags       *[]string `json:"tags"`
	CoverImage *string   `json:"coverImage"`
	Media      *[]Media  `json:"media"`
}

// Schema validates post writes at the store layer. The media type enum is
// enforced here so that no write path can slip an unknown kind past it.
func Schema() docstore.Schema {
	return docstore.Schema{Validate: func(fields map[string]any) error {
		for _, key := range []string{"title", "content", "coverImage"} {
			if v, ok := fields[key]; ok {
				if _, isString := v.(string); !isString {
					return fmt.Errorf("%w: %s must be a string", docstore.ErrInvalidDocument, key)
				}
			}
		}
		if v, ok := fields["tags"]; ok {
			if err := validateTags(v); err != nil {
				return err
			}
		}
		if v, ok := fields["media"]; ok {
			if err := validateMedia(v); err != nil {
				return err
			}
		}
		return nil
	}}
}

func validateTags(v any) error {
	switch tags := v.(type) {
	case []string:
		return nil
	case []any:
		for _, tag := range tags {
			if _, isString := tag.(string); !isString {
				return fmt.Errorf("%w: tags must be strings", docstore.ErrInvalidDocument)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: tags must be a list", docstore.ErrInvalidDocument)
	}
}

func validateMedia(v any) error {
	switch entries := v.(type) {
	case []Media:
		for _, m := range entries {
			if err := validateMediaEntry(m.Type, m.URL); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, entry := range entries {
			m, ok := entry.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: media entries must be objects", docstore.ErrInvalidDocument)
			}
			mediaType, _ := m["type"].(string)
			mediaURL, _ := m["url"].(string)
			if err := validateMediaEntry(mediaType, mediaURL); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: media must be a list", docstore.ErrInvalidDocument)
	}
}

func validateMediaEntry(mediaType, mediaURL string) error {
	if !MediaTypes[mediaType] {
		return fmt.Errorf("%w: media type must be one of image, video, audio", docstore.ErrInvalidDocument)
	}
	if strings.TrimSpace(mediaURL) == "" {
		return fmt.Errorf("%w: media url is required", docstore.ErrInvalidDocument)
	}
	return nil
}

type Service struct {
	Store docstore.Store
	Feed  *events.Feed
}

func NewService(store docstore.Store, feed *events.Feed) *Service {
	return &Service{Store: store, Feed: feed}
}

func (s *Service) List(ctx context.Context) ([]Post, error) {
	records, err := s.Store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	result := make([]Post, 0, len(records))
	for _, rec := range records {
		result = append(result, fromRecord(rec))
	}
	return result, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Post, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Post{}, ErrTitleRequired
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	media := req.Media
	if media == nil {
		media = []Media{}
	}

	rec, err := s.Store.Create(ctx, Collection, map[string]any{
		"title":      title,
		"content":    req.Content,
		"tags":       tags,
		"coverImage": req.CoverImage,
		"media":      media,
	})
	if err != nil {
		return Post{}, err
	}
	s.Feed.Record(Collection, rec.ID, events.ActionCreated)
	return fromRecord(rec), nil
}

func (s *Service) Get(ctx context.Context, id string) (Post, error) {
	rec, err := s.Store.GetByID(ctx, Collection, id)
	if err != nil {
		return Post{}, err
	}
	return fromRecord(rec), nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Post, error) {
	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}
	if req.Tags != nil {
		fields["tags"] = *req.Tags
	}
	if req.CoverImage != nil {
		fields["coverImage"] = *req.CoverImage
	}
	if req.Media != nil {
		fields["media"] = *req.Media
	}

	rec, err := s.Store.UpdateByID(ctx, Collection, id, fields)
	if err != nil {
		return Post{}, err
	}
	s.Feed.Record(Collection, rec.ID, events.ActionUpdated)
	return fromRecord(rec), nil
}

func (s *Service) Delete(ctx context.Context, id string) (Post, error) {
	rec, err := s.Store.DeleteByID(ctx, Collection, id)
	if err != nil {
		return Post{}, err
	}
	s.Feed.Record(Collection, rec.ID, events.ActionDeleted)
	return fromRecord(rec), nil
}

func fromRecord(rec docstore.Record) Post {
	p := Post{
		ID:        rec.ID,
		Tags:      []string{},
		Media:     []Media{},
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	p.Title, _ = rec.Fields["title"].(string)
	p.Content, _ = rec.Fields["content"].(string)
	p.CoverImage, _ = rec.Fields["coverImage"].(string)
	p.Tags = decodeTags(rec.Fields["tags"])
	p.Media = decodeMedia(rec.Fields["media"])
	return p
}

// decodeTags handles both the in-memory representation ([]string) and the
// JSONB round trip ([]any).
func decodeTags(v any) []string {
	switch tags := v.(type) {
	case []string:
		out := make([]string, len(tags))
		copy(out, tags)
		return out
	case []any:
		out := make([]string, 0, len(tags))
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func decodeMedia(v any) []Media {
	switch entries := v.(type) {
	case []Media:
		out := make([]Media, len(entries))
		copy(out, entries)
		return out
	case []any:
		out := make([]Media, 0, len(entries))
		for _, entry := range entries {
			if m, ok := entry.(map[string]any); ok {
				var media Media
				media.Type, _ = m["type"].(string)
				media.URL, _ = m["url"].(string)
				out = append(out, media)
			}
		}
		return out
	default:
		return []Media{}
	}
}
