// Package server exposes the scan pipeline over HTTP: spreadsheet upload,
// run inspection, and a per-run server-sent-events progress stream.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recall-cli/internal/config"
	"github.com/sells-group/recall-cli/internal/model"
	"github.com/sells-group/recall-cli/internal/progress"
	"github.com/sells-group/recall-cli/internal/store"
)

const maxUploadBytes = 32 << 20

// Runner starts and executes scan runs. Satisfied by pipeline.Pipeline.
type Runner interface {
	NewRun(ctx context.Context, sourceFile string) (*model.Run, *progress.Broker, error)
	Execute(ctx context.Context, run *model.Run, broker *progress.Broker, sourcePath string) (*model.RunResult, error)
}

// Server handles the HTTP API.
type Server struct {
	cfg    *config.Config
	store  store.Store
	runner Runner

	mu      sync.Mutex
	brokers map[string]*progress.Broker
}

// New creates a Server.
func New(cfg *config.Config, st store.Store, runner Runner) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		runner:  runner,
		brokers: make(map[string]*progress.Broker),
	}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/scans", func(r chi.Router) {
		r.Post("/", s.handleCreateScan)
		r.Get("/", s.handleListScans)
		r.Get("/{id}", s.handleGetScan)
		r.Get("/{id}/events", s.handleScanEvents)
	})
	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		srv.Shutdown(context.Background()) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	path, err := s.saveUpload(file, header.Filename)
	if err != nil {
		zap.L().Error("save upload", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	run, broker, err := s.runner.NewRun(r.Context(), header.Filename)
	if err != nil {
		zap.L().Error("create run", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create run")
		return
	}

	s.mu.Lock()
	s.brokers[run.ID] = broker
	s.mu.Unlock()

	// The scan outlives the upload request.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.brokers, run.ID)
			s.mu.Unlock()
		}()
		if _, err := s.runner.Execute(context.Background(), run, broker, path); err != nil {
			zap.L().Error("scan failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(run.Status),
	})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) saveUpload(file io.Reader, original string) (string, error) {
	dir := s.cfg.Server.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "server: create upload dir")
	}

	ext := filepath.Ext(original)
	if ext == "" {
		ext = ".xlsx"
	}
	path := filepath.Join(dir, uuid.New().String()+ext)

	out, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "server: create upload file")
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", eris.Wrap(err, "server: write upload")
	}
	return path, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
