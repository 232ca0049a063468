// Package uploads forwards binary content to a remote media host and returns
// the resulting public URL.
package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

var ErrUpstream = errors.New("media host upload failed")

const (
	KindImage = "image"
	KindVideo = "video"
	KindAudio = "audio"
	KindOther = "other"
)

type Result struct {
	URL  string `json:"url"`
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Gateway posts multipart bodies to the media host. The whole file is held
// in memory for the duration of the request; the handler caps the size.
type Gateway struct {
	UploadURL  string
	APIKey     string
	HTTPClient *http.Client
}

func NewGateway(uploadURL, apiKey string) *Gateway {
	return &Gateway{
		UploadURL:  uploadURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type hostResponse struct {
	URL          string `json:"url"`
	SecureURL    string `json:"secure_url"`
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"`
}

func (g *Gateway) Upload(ctx context.Context, data []byte, filename string) (Result, error) {
	kind := DetectKind(data, filename)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, err
	}
	if g.APIKey != "" {
		if err := writer.WriteField("api_key", g.APIKey); err != nil {
			return Result{}, err
		}
	}
	if err := writer.WriteField("resource_type", kind); err != nil {
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.UploadURL, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var host hostResponse
	if err := json.NewDecoder(resp.Body).Decode(&host); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	result := Result{
		URL:  host.SecureURL,
		ID:   host.PublicID,
		Kind: host.ResourceType,
	}
	if result.URL == "" {
		result.URL = host.URL
	}
	if result.Kind == "" {
		result.Kind = kind
	}
	if result.URL == "" {
		return Result{}, fmt.Errorf("%w: response has no url", ErrUpstream)
	}
	return result, nil
}

// DetectKind sniffs the content and falls back to the filename extension.
func DetectKind(data []byte, filename string) string {
	contentType := http.DetectContentType(data)
	if kind := kindFromContentType(contentType); kind != KindOther {
		return kind
	}
	if ext := filepath.Ext(filename); ext != "" {
		return kindFromContentType(mime.TypeByExtension(ext))
	}
	return KindOther
}

func kindFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return KindImage
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo
	case strings.HasPrefix(contentType, "audio/"):
		return KindAudio
	default:
		return KindOther
	}
}
