// Package server exposes synthesis over HTTP: songs are posted as worker
// requests, rendered artifacts are fetched from the store by job ID.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/holysaw/holysaw/internal/logging"
	"github.com/holysaw/holysaw/store"
	"github.com/holysaw/holysaw/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type (
	// Server handles the HTTP API. Jobs are run by the worker; artifacts are
	// served from the store the worker saves them to.
	Server struct {
		worker       *worker.Worker
		store        store.Store
		logger       *slog.Logger
		maxStopMs    float64
		maxBodyBytes int64
		registry     *prometheus.Registry
		metrics      *metrics
	}

	Option func(*Server)

	metrics struct {
		runs      *prometheus.CounterVec
		duration  prometheus.Histogram
		samples   prometheus.Counter
		recovered prometheus.Counter
	}
)

const defaultMaxBodyBytes = 4 << 20

var contentTypes = map[string]string{
	"wav":   "audio/wav",
	"trace": "text/plain; charset=utf-8",
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxStopMs rejects requests asking for more than ms milliseconds, and
// caps requests that do not say.
func WithMaxStopMs(ms float64) Option {
	return func(s *Server) { s.maxStopMs = ms }
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// New creates a server running jobs on w. st may be nil, in which case
// artifacts are only returned inline.
func New(w *worker.Worker, st store.Store, opts ...Option) *Server {
	s := &Server{
		worker:       w,
		store:        st,
		logger:       logging.NewNop(),
		maxBodyBytes: defaultMaxBodyBytes,
		registry:     prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.registry)
	return s
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holysaw_runs_total",
			Help: "Total number of synthesis runs, by outcome",
		}, []string{"action"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "holysaw_run_duration_seconds",
			Help:    "Duration of synthesis runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holysaw_samples_total",
			Help: "Total number of samples synthesized",
		}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holysaw_recovered_errors_total",
			Help: "Total number of cell and output errors recovered from",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.samples, m.recovered)
	return m
}

// Handler returns the routes of the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/synthesize", s.synthesize)
	r.Get("/results/{id}/{artifact}", s.result)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) synthesize(w http.ResponseWriter, r *http.Request) {
	var req worker.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	// IDs key the stored artifacts, so clients never choose them
	req.ID = uuid.NewString()
	if s.maxStopMs > 0 {
		if req.StopMs != nil && *req.StopMs > s.maxStopMs {
			http.Error(w, fmt.Sprintf("stopMs %v exceeds the limit of %v ms", *req.StopMs, s.maxStopMs), http.StatusBadRequest)
			return
		}
		if req.StopMs == nil {
			capped := s.maxStopMs
			req.StopMs = &capped
		}
	}
	start := time.Now()
	resp, err := s.worker.Submit(r.Context(), req)
	if err != nil {
		http.Error(w, fmt.Sprintf("synthesis cancelled: %v", err), http.StatusServiceUnavailable)
		return
	}
	s.metrics.runs.WithLabelValues(resp.Action).Inc()
	s.metrics.duration.Observe(time.Since(start).Seconds())
	if resp.Result != nil {
		s.metrics.samples.Add(float64(resp.Result.Length))
		s.metrics.recovered.Add(float64(resp.Result.Recovered))
	}
	status := http.StatusOK
	if resp.Action == worker.ActionError {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode_failed", "job_id", resp.ID, "error", err)
	}
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) {
	id, artifact := chi.URLParam(r, "id"), chi.URLParam(r, "artifact")
	contentType, ok := contentTypes[artifact]
	if !ok || s.store == nil {
		http.NotFound(w, r)
		return
	}
	data, err := s.store.Get(r.Context(), store.ResultKey(id, artifact))
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("store_failed", "job_id", id, "error", err)
		http.Error(w, "could not read the artifact", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// ListenAndServe serves the API on addr until ctx is cancelled, then gives
// outstanding requests shutdownTimeout to complete.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server_start", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	s.logger.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
		return srv.Close()
	}
	return nil
}
