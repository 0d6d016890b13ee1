package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
)

// JobReader is the read side of the job use case.
type JobReader interface {
	Get(ctx context.Context, requestID string) (*model.Job, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]*model.Job, error)
}

// HealthCheck probes one dependency, e.g. a database ping.
type HealthCheck func(ctx context.Context) error

// Server is the admin HTTP surface: health, metrics and job status queries.
type Server struct {
	port   int
	jobs   JobReader
	auth   *AuthManager
	checks map[string]HealthCheck
	log    *zerolog.Logger
}

func NewServer(port int, jobs JobReader, auth *AuthManager, checks map[string]HealthCheck, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminHTTP").Logger()
	return &Server{port: port, jobs: jobs, auth: auth, checks: checks, log: &l}
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover(s.log), RequestLog(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/jobs/{requestID}", s.handleGetJob)
		r.Get("/users/{userID}/jobs", s.handleListJobs)
	})
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.port).Msg("admin HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	writeJSON(w, code, status)
}

type jobResponse struct {
	RequestID      string          `json:"request_id"`
	SubscriptionID *int64          `json:"subscription_id,omitempty"`
	UserID         int64           `json:"user_id"`
	ChatID         int64           `json:"chat_id"`
	ChatTitle      string          `json:"chat_title"`
	Status         model.JobStatus `json:"status"`
	Detail         json.RawMessage `json:"detail,omitempty"`
	IsManual       bool            `json:"is_manual"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		RequestID:      j.RequestID,
		SubscriptionID: j.SubscriptionID,
		UserID:         j.UserID,
		ChatID:         j.ChatID,
		ChatTitle:      j.ChatTitle,
		Status:         j.Status,
		Detail:         j.Detail,
		IsManual:       j.IsManual,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 || limit > 100 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	jobs, err := s.jobs.ListRecent(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "bad request", http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("admin request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
