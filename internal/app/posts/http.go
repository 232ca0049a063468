package posts

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/blogkit/backend/internal/docstore"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *Service

	// Auth gates the mutating routes. Reads stay open.
	Auth func(http.Handler) http.Handler
}

func NewHandler(service *Service, auth func(http.Handler) http.Handler) *Handler {
	return &Handler{Service: service, Auth: auth}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)

	r.Group(func(authR chi.Router) {
		authR.Use(h.Auth)
		authR.Post("/", h.handleCreate)
		authR.Put("/{id}", h.handleUpdate)
		authR.Delete("/{id}", h.handleDelete)
	})

	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.List(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	post, err := h.Service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrTitleRequired) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	post, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	post, err := h.Service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "post deleted",
		"id":      post.ID,
	})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "post not found")
	case errors.Is(err, docstore.ErrInvalidDocument):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("posts: store error: %v", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"message": msg})
}
