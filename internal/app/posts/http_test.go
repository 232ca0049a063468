package posts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blogkit/backend/internal/docstore"
	"github.com/blogkit/backend/internal/events"
	"github.com/blogkit/backend/internal/platform/adminkey"
	"github.com/go-chi/chi/v5"
)

const testAdminKey = "test-admin-key"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := docstore.NewMemStore(map[string]docstore.Schema{Collection: Schema()})
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	checker, err := adminkey.NewChecker(testAdminKey)
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}
	handler := NewHandler(NewService(store, events.Nop()), checker.Middleware)
	r := chi.NewRouter()
	r.Mount("/posts", handler.Router())
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body, key string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(adminkey.Header, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func TestCreateWithoutKeyIs401(t *testing.T) {
	router := newTestRouter(t)

	rec, resp := doRequest(t, router, http.MethodPost, "/posts", `{"title":"valid body"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d want 401", rec.Code)
	}
	if msg, _ := resp["message"].(string); msg == "" {
		t.Fatalf("error body has no message: %s", rec.Body.String())
	}

	rec, _ = doRequest(t, router, http.MethodPost, "/posts", `{"title":"valid body"}`, "wrong-key")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: got %d want 401", rec.Code)
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	router := newTestRouter(t)

	rec, created := doRequest(t, router, http.MethodPost, "/posts", `{"title":"Hello"}`, testAdminKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d want 201, body %s", rec.Code, rec.Body.String())
	}
	if created["content"] != "" {
		t.Fatalf("content default wrong: %v", created["content"])
	}
	tags, ok := created["tags"].([]any)
	if !ok || len(tags) != 0 {
		t.Fatalf("tags must default to []: %v", created["tags"])
	}
	media, ok := created["media"].([]any)
	if !ok || len(media) != 0 {
		t.Fatalf("media must default to []: %v", created["media"])
	}
	if created["coverImage"] != "" {
		t.Fatalf("coverImage default wrong: %v", created["coverImage"])
	}

	id := created["id"].(string)
	rec, fetched := doRequest(t, router, http.MethodGet, "/posts/"+id, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d want 200", rec.Code)
	}
	if fetched["title"] != "Hello" {
		t.Fatalf("get does not match created record: %v", fetched)
	}
}

func TestCreateMissingTitleIs400(t *testing.T) {
	router := newTestRouter(t)
	rec, _ := doRequest(t, router, http.MethodPost, "/posts", `{"content":"body only"}`, testAdminKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", rec.Code)
	}
}

func TestCreateRejectsInvalidMediaType(t *testing.T) {
	router := newTestRouter(t)

	body := `{"title":"With media","media":[{"type":"pdf","url":"https://cdn.example/file.pdf"}]}`
	rec, resp := doRequest(t, router, http.MethodPost, "/posts", body, testAdminKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400, body %s", rec.Code, rec.Body.String())
	}
	if msg, _ := resp["message"].(string); msg == "" {
		t.Fatal("error body has no message")
	}

	rec, _ = doRequest(t, router, http.MethodGet, "/posts", "", "")
	var list []map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Fatal("rejected create persisted a record")
	}
}

func TestCreateAcceptsValidMedia(t *testing.T) {
	router := newTestRouter(t)

	body := `{"title":"Show","media":[{"type":"image","url":"https://cdn.example/a.png"},{"type":"video","url":"https://cdn.example/b.mp4"}]}`
	rec, created := doRequest(t, router, http.MethodPost, "/posts", body, testAdminKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d want 201, body %s", rec.Code, rec.Body.String())
	}
	media := created["media"].([]any)
	if len(media) != 2 {
		t.Fatalf("media not persisted: %v", created)
	}
}

func TestUpdateMergesOnlySuppliedFields(t *testing.T) {
	router := newTestRouter(t)

	_, created := doRequest(t, router, http.MethodPost, "/posts",
		`{"title":"Original","tags":["go","web"],"coverImage":"https://cdn.example/cover.png"}`, testAdminKey)
	id := created["id"].(string)

	rec, updated := doRequest(t, router, http.MethodPut, "/posts/"+id, `{"content":"new body"}`, testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d want 200, body %s", rec.Code, rec.Body.String())
	}
	if updated["content"] != "new body" {
		t.Fatalf("content not updated: %v", updated)
	}
	if updated["title"] != "Original" {
		t.Fatalf("absent title was clobbered: %v", updated)
	}
	tags := updated["tags"].([]any)
	if len(tags) != 2 {
		t.Fatalf("absent tags were clobbered: %v", updated)
	}
	if updated["coverImage"] != "https://cdn.example/cover.png" {
		t.Fatalf("absent coverImage was clobbered: %v", updated)
	}
}

func TestUpdateWithoutKeyIs401(t *testing.T) {
	router := newTestRouter(t)

	_, created := doRequest(t, router, http.MethodPost, "/posts", `{"title":"Locked"}`, testAdminKey)
	id := created["id"].(string)

	rec, _ := doRequest(t, router, http.MethodPut, "/posts/"+id, `{"title":"Hacked"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("update: got %d want 401", rec.Code)
	}
	rec, _ = doRequest(t, router, http.MethodDelete, "/posts/"+id, "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("delete: got %d want 401", rec.Code)
	}

	_, fetched := doRequest(t, router, http.MethodGet, "/posts/"+id, "", "")
	if fetched["title"] != "Locked" {
		t.Fatalf("unauthorized update mutated the record: %v", fetched)
	}
}

func TestDeleteThenGetIs404(t *testing.T) {
	router := newTestRouter(t)

	_, created := doRequest(t, router, http.MethodPost, "/posts", `{"title":"Temp"}`, testAdminKey)
	id := created["id"].(string)

	rec, _ := doRequest(t, router, http.MethodDelete, "/posts/"+id, "", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: got %d want 200", rec.Code)
	}
	rec, _ = doRequest(t, router, http.MethodGet, "/posts/"+id, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d want 404", rec.Code)
	}
	rec, _ = doRequest(t, router, http.MethodDelete, "/posts/"+id, "", testAdminKey)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d want 404", rec.Code)
	}
}

func TestGetUnknownIDIs404(t *testing.T) {
	router := newTestRouter(t)
	for _, id := range []string{"ABCDEFGHIJKLMNOPQRSTUV", "not-an-id"} {
		rec, _ := doRequest(t, router, http.MethodGet, "/posts/"+id, "", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("get %q: got %d want 404", id, rec.Code)
		}
	}
}
