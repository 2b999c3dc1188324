package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/navada/insightlab/internal/analytics"
	"github.com/navada/insightlab/internal/chat"
	"github.com/navada/insightlab/internal/config"
	"github.com/navada/insightlab/internal/elasticsearch"
	"github.com/navada/insightlab/internal/logger"
	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/pipeline"
	"github.com/navada/insightlab/internal/snapshot"
)

type jobSearcher interface {
	SearchJobs(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	Health(ctx context.Context) error
}

type asker interface {
	Ask(ctx context.Context, q chat.Question) (chat.Answer, error)
	Configured() bool
}

func main() {
	_ = godotenv.Load()
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv := newServer(log, cfg)

	if cfg.ElasticsearchAddr != "" {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		srv.es = esClient
	}

	provider, err := chat.FromConfig(ctx, cfg)
	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		log.Warn("chat disabled, no key for provider", slog.String("provider", cfg.ChatProvider))
	case err != nil:
		log.Error("init chat provider", slog.Any("err", err))
		os.Exit(1)
	}
	srv.chat = chat.NewBridge(provider, srv.prompt, cfg.ChatTimeout)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.ChatTimeout + 15*time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log      *slog.Logger
	cfg      *config.API
	store    *snapshot.Store
	es       jobSearcher
	chat     asker
	validate *validator.Validate

	mu       sync.Mutex
	ds       *models.Dataset
	loadedAt time.Time
}

func newServer(log *slog.Logger, cfg *config.API) *server {
	return &server{
		log:      log,
		cfg:      cfg,
		store:    snapshot.New(cfg.SnapshotPath),
		validate: validator.New(),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs", s.handleJobs)
		r.Get("/jobs/search", s.handleSearch)
		r.Get("/summary", s.handleSummary)
		r.Post("/chat", s.handleChat)
	})
	r.Handle("/charts/*", http.StripPrefix("/charts/", http.FileServer(http.Dir(s.cfg.ChartsDir))))
	r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status        string     `json:"status"`
	Snapshot      bool       `json:"snapshot"`
	SnapshotAt    *time.Time `json:"snapshot_updated_at,omitempty"`
	Search        string     `json:"search"`
	ChatAvailable bool       `json:"chat"`
}

type jobsResponse struct {
	Total  int                `json:"total"`
	Offset int                `json:"offset"`
	Items  []models.JobRecord `json:"items"`
	Stale  bool               `json:"stale"`
}

// dataset returns the snapshot view, reloading it only when the file changed.
func (s *server) dataset() (*models.Dataset, error) {
	mod, err := s.store.ModTime()
	if err != nil && !errors.Is(err, snapshot.ErrNoSnapshot) {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ds != nil && s.loadedAt.Equal(mod) {
		return s.ds, nil
	}

	ds, err := pipeline.Snapshot(s.store, s.cfg.CategoriesPath)
	if err != nil {
		return nil, err
	}
	s.ds, s.loadedAt = ds, mod
	return ds, nil
}

func (s *server) prompt(context.Context) (string, error) {
	ds, err := s.dataset()
	if err != nil {
		return "", err
	}
	return analytics.Summarize(ds).Prompt(), nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Search: "disabled"}

	if mod, err := s.store.ModTime(); err == nil {
		resp.Snapshot = true
		resp.SnapshotAt = &mod
	}

	if s.es != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Search = "ok"
		if err := s.es.Health(ctx); err != nil {
			resp.Search = "unavailable"
			resp.Status = "degraded"
		}
	}
	resp.ChatAvailable = s.chat.Configured()

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleJobs(w http.ResponseWriter, r *http.Request) {
	ds, err := s.dataset()
	if err != nil {
		s.log.Error("load snapshot", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	q := r.URL.Query()
	location := strings.TrimSpace(q.Get("location"))
	company := strings.TrimSpace(q.Get("company"))
	workType := strings.TrimSpace(q.Get("work_type"))

	filtered := make([]models.JobRecord, 0, len(ds.Jobs))
	for _, j := range ds.Jobs {
		if location != "" && !strings.EqualFold(j.Location, location) {
			continue
		}
		if company != "" && !strings.EqualFold(j.Company, company) {
			continue
		}
		if workType != "" && !strings.EqualFold(j.WorkType, workType) {
			continue
		}
		filtered = append(filtered, j)
	}

	offset := clampInt(q.Get("offset"), 0, len(filtered))
	limit := clampInt(q.Get("limit"), s.cfg.DefaultPage, s.cfg.MaxPage)
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	writeJSON(w, http.StatusOK, jobsResponse{
		Total:  len(filtered),
		Offset: offset,
		Items:  filtered[offset:end],
		Stale:  ds.Stale,
	})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.es == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "search index is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:    strings.TrimSpace(q.Get("q")),
		Location: strings.TrimSpace(q.Get("location")),
		Category: strings.TrimSpace(q.Get("category")),
		WorkType: strings.TrimSpace(q.Get("work_type")),
		From:     clampInt(q.Get("from"), 0, 10_000),
		Size:     clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:     strings.TrimSpace(q.Get("sort")),
	}

	result, err := s.es.SearchJobs(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	ds, err := s.dataset()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, analytics.Summarize(ds))
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var q chat.Question
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	if err := dec.Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	q.Text = strings.TrimSpace(q.Text)
	if err := s.validate.Struct(q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	answer, err := s.chat.Ask(r.Context(), q)
	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.log.Warn("chat failed", slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "assistant unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value < 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
