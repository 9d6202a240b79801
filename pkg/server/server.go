package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srodi/pstat/pkg/metrics"
	"github.com/srodi/pstat/pkg/types"
)

const (
	PinfoPath = "/api/v1/pinfo"
	ProcsPath = "/api/v1/procs"
)

// Source is what the server reads process statistics from.
type Source interface {
	Snapshot() types.PStat
	Getprocs() int32
}

// ProcsResponse is the body of ProcsPath.
type ProcsResponse struct {
	Active int32 `json:"active"`
}

type Server struct {
	src     Source
	reg     *prometheus.Registry
	metrics *metrics.StatsMetrics
	log     hclog.Logger
	http    *http.Server
}

// New builds the HTTP API over src. A nil logger discards output.
func New(addr string, src Source, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	reg := prometheus.NewRegistry()
	s := &Server{
		src:     src,
		reg:     reg,
		metrics: metrics.NewStatsMetrics(reg),
		log:     logger.Named("http"),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the route table. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	metricsHandler := promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		ps := s.src.Snapshot()
		s.metrics.Update(&ps)
		metricsHandler.ServeHTTP(w, req)
	})
	r.Get(PinfoPath, s.handlePinfo)
	r.Get(ProcsPath, s.handleProcs)
	return r
}

func (s *Server) handlePinfo(w http.ResponseWriter, r *http.Request) {
	ps := s.src.Snapshot()
	s.writeJSON(w, http.StatusOK, &ps)
}

func (s *Server) handleProcs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ProcsResponse{Active: s.src.Getprocs()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("writing response", "error", err)
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.http.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown failed")
	}
	return nil
}
