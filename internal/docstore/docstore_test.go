package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"ABCDEFGHIJKLMNOPQRSTUV", true},
		{"abc123XYZ0000000000000", true},
		{"", false},
		{"short", false},
		{"ABCDEFGHIJKLMNOPQRSTU!", false},
		{"ABCDEFGHIJKLMNOPQRSTUVW", false},
		{"../../../../etc/passwd", false},
	}
	for _, tc := range cases {
		if got := ValidID(tc.id); got != tc.want {
			t.Errorf("ValidID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func testSchemas() map[string]Schema {
	return map[string]Schema{
		"things": {Validate: func(fields map[string]any) error {
			if v, ok := fields["kind"]; ok {
				if v != "good" {
					return fmt.Errorf("%w: bad kind", ErrInvalidDocument)
				}
			}
			return nil
		}},
	}
}

func newTestStore() *MemStore {
	store := NewMemStore(testSchemas())
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return store
}

func TestCreateAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	first, err := store.Create(ctx, "things", map[string]any{"name": "first"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := store.Create(ctx, "things", map[string]any{"name": "second"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if !ValidID(first.ID) || first.ID == second.ID {
		t.Fatalf("bad assigned ids: %q, %q", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() || !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("timestamps not assigned on create: %+v", first)
	}

	records, err := store.List(ctx, "things")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != second.ID || records[1].ID != first.ID {
		t.Fatalf("list is not newest-first: %v", records)
	}
}

func TestUpdateMergesOnlySuppliedFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	created, err := store.Create(ctx, "things", map[string]any{"name": "widget", "count": 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := store.UpdateByID(ctx, "things", created.ID, map[string]any{"count": 2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Fields["name"] != "widget" {
		t.Fatalf("absent field was clobbered: %v", updated.Fields)
	}
	if updated.Fields["count"] != 2 {
		t.Fatalf("supplied field not merged: %v", updated.Fields)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at not refreshed: %v <= %v", updated.UpdatedAt, created.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("created_at must be immutable")
	}
}

func TestMalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	for _, id := range []string{"", "nope", "not-a-valid-id-at-all!"} {
		if _, err := store.GetByID(ctx, "things", id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID(%q): got %v, want ErrNotFound", id, err)
		}
		if _, err := store.UpdateByID(ctx, "things", id, map[string]any{"count": 1}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateByID(%q): got %v, want ErrNotFound", id, err)
		}
		if _, err := store.DeleteByID(ctx, "things", id); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteByID(%q): got %v, want ErrNotFound", id, err)
		}
	}
}

func TestDeleteTwice(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	created, err := store.Create(ctx, "things", map[string]any{"name": "gone"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	removed, err := store.DeleteByID(ctx, "things", created.ID)
	if err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if removed.ID != created.ID {
		t.Fatalf("delete returned wrong record: %+v", removed)
	}
	if _, err := store.DeleteByID(ctx, "things", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestSchemaRejectsInvalidWrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	if _, err := store.Create(ctx, "things", map[string]any{"kind": "bad"}); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("create: got %v, want ErrInvalidDocument", err)
	}
	records, _ := store.List(ctx, "things")
	if len(records) != 0 {
		t.Fatal("rejected create must not persist a record")
	}

	created, err := store.Create(ctx, "things", map[string]any{"kind": "good"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.UpdateByID(ctx, "things", created.ID, map[string]any{"kind": "bad"}); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("update: got %v, want ErrInvalidDocument", err)
	}
}

func TestUnknownCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	if _, err := store.Create(ctx, "nope", map[string]any{}); !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("got %v, want ErrUnknownCollection", err)
	}
}
