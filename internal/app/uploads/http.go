package uploads

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Gateway  *Gateway
	MaxBytes int64

	// Auth gates the route; uploads are always a mutating operation.
	Auth func(http.Handler) http.Handler
}

func NewHandler(gateway *Gateway, maxBytes int64, auth func(http.Handler) http.Handler) *Handler {
	return &Handler{Gateway: gateway, MaxBytes: maxBytes, Auth: auth}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Group(func(authR chi.Router) {
		authR.Use(h.Auth)
		authR.Post("/", h.handleUpload)
	})
	return r
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	result, err := h.Gateway.Upload(r.Context(), data, header.Filename)
	if err != nil {
		if errors.Is(err, ErrUpstream) {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("uploads: %v", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"message": msg})
}
