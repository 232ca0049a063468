package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blogkit/backend/internal/app/posts"
	"github.com/blogkit/backend/internal/app/todos"
	"github.com/blogkit/backend/internal/app/uploads"
	"github.com/blogkit/backend/internal/docstore"
	"github.com/blogkit/backend/internal/events"
	"github.com/blogkit/backend/internal/platform/adminkey"
	"github.com/blogkit/backend/internal/platform/dbpool"
	"github.com/blogkit/backend/internal/platform/env"
	"github.com/blogkit/backend/internal/platform/metrics"
	"github.com/blogkit/backend/internal/platform/natsutil"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
)

const defaultMaxUploadBytes = 32 << 20

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenAddr := env.String("LISTEN_ADDR", env.DefaultListenAddr)
	uiOrigin := env.String("UI_ORIGIN", "*")
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	adminKey := env.MustString("ADMIN_KEY")
	mediaUploadURL := env.MustString("MEDIA_UPLOAD_URL")
	mediaAPIKey := env.String("MEDIA_API_KEY", "")
	maxUploadBytes := env.Int64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	checker, err := adminkey.NewChecker(adminKey)
	if err != nil {
		log.Fatal(err)
	}

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := docstore.NewPgStore(pool, map[string]docstore.Schema{
		todos.Collection: todos.Schema(),
		posts.Collection: posts.Schema(),
	})
	if err := waitForStoreSchema(runCtx, store, 30*time.Second); err != nil {
		log.Fatal(err)
	}

	feed := events.Nop()
	var natsClient *natsutil.Client
	if natsURL := env.String("NATS_URL", ""); natsURL != "" {
		natsClient, err = natsutil.ConnectJetStreamWithRetry(natsURL, 20*time.Second)
		if err != nil {
			log.Fatal(err)
		}
		defer natsClient.Close()
		feed = events.NewFeed(natsutil.JetStreamPublisher{JS: natsClient.JS}.Publish)
	}

	todoHandler := todos.NewHandler(todos.NewService(store, feed))
	postHandler := posts.NewHandler(posts.NewService(store, feed), checker.Middleware)
	uploadHandler := uploads.NewHandler(uploads.NewGateway(mediaUploadURL, mediaAPIKey), maxUploadBytes, checker.Middleware)

	r := chi.NewRouter()
	r.Use(metrics.HTTPMiddleware(chiRoutePattern))
	r.Use(corsMiddleware(uiOrigin))
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := checkReadiness(req.Context(), pool, natsClient); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.DefaultHandler())

	r.Mount("/todos", todoHandler.Router())
	r.Mount("/posts", postHandler.Router())
	r.Mount("/upload", uploadHandler.Router())

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("API server listening on %s\n", listenAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api-server graceful shutdown failed: %v", err)
	}
}

func waitForStoreSchema(ctx context.Context, store *docstore.PgStore, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = store.EnsureSchema(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for document store readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, client *natsutil.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	if client != nil && client.Conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", client.Conn.Status().String())
	}
	return nil
}

func chiRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	allowed := strings.TrimSpace(allowedOrigin)
	if allowed == "" {
		allowed = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

			requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
			if requestHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
			} else {
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+adminkey.Header)
			}
			next.ServeHTTP(w, r)
		})
	}
}
