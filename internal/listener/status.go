package listener

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"liftsync/internal"
	"liftsync/internal/logging"
	"liftsync/internal/metrics"
	"liftsync/internal/storage"
)

const defaultFilesLimit = 50

// StatusServer exposes health, metrics and the file ledger over HTTP.
type StatusServer struct {
	db      *storage.DB
	metrics *metrics.Manager
	router  *chi.Mux
	server  *http.Server
}

func NewStatusServer(addr string, db *storage.DB, m *metrics.Manager) *StatusServer {
	s := &StatusServer{db: db, metrics: m, router: chi.NewRouter()}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", m.Handler())
	s.router.Get("/files", s.handleFiles)
	s.router.Get("/files/{id}/runs", s.handleRuns)

	s.server = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *StatusServer) Handler() http.Handler { return s.router }

// Serve blocks until ctx is done, then shuts the server down.
func (s *StatusServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

type fileView struct {
	ID        int    `json:"id"`
	Source    string `json:"source"`
	Ref       string `json:"ref"`
	Name      string `json:"name"`
	Dialect   string `json:"dialect,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (s *StatusServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	limit := defaultFilesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	status := internal.FileStatus(r.URL.Query().Get("status"))

	files, err := s.db.ListFiles(status, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		out = append(out, fileView{
			ID:        f.ID,
			Source:    string(f.Source),
			Ref:       f.Ref,
			Name:      f.Name,
			Dialect:   string(f.Dialect),
			Status:    string(f.Status),
			Error:     f.Error,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		})
	}
	respondJSON(w, r, http.StatusOK, out)
}

func (s *StatusServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "bad file id"})
		return
	}
	runs, err := s.db.ListRuns(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, runs)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"error", err.Error(),
	)
	respondJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Debug("write response", "path", r.URL.Path, "error", err)
	}
}
