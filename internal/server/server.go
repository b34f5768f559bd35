// Package server exposes the dataset views and the question pipeline over
// HTTP for the dashboard frontend.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/dataset"
	"availability-dashboard/internal/storage"
)

const serviceName = "Store Availability AI Dashboard API"

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	Addr string
	// QueryTimeout bounds one question, model call included.
	QueryTimeout time.Duration
	// QueryRate and QueryBurst limit /api/query and /api/chart.png across
	// all clients. A zero rate disables limiting.
	QueryRate  float64
	QueryBurst int
}

type Server struct {
	agent    *agent.Agent
	data     *dataset.Dataset
	recorder storage.Recorder
	limiter  *rate.Limiter
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

func New(a *agent.Agent, recorder storage.Recorder, opts Options, logger *zap.Logger) *Server {
	if recorder == nil {
		recorder = storage.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.QueryRate > 0 {
		limit = rate.Limit(opts.QueryRate)
	}
	return &Server{
		agent:    a,
		data:     a.Dataset(),
		recorder: recorder,
		limiter:  rate.NewLimiter(limit, max(1, opts.QueryBurst)),
		opts:     opts,
		logger:   logger.Named("http"),
		now:      time.Now,
	}
}

// Handler returns the routed API with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/data/summary", s.handleSummary)
	mux.HandleFunc("GET /api/data/summary/text", s.handleSummaryText)
	mux.HandleFunc("GET /api/data/preview", s.handlePreview)
	mux.HandleFunc("GET /api/data/filtered", s.handleFiltered)
	mux.Handle("POST /api/query", s.limited(http.HandlerFunc(s.handleQuery)))
	mux.Handle("POST /api/chart.png", s.limited(http.HandlerFunc(s.handleChartPNG)))
	mux.HandleFunc("GET /api/analytics/daily", s.handleDailyAnalytics)

	return s.logRequests(cors(mux))
}

// Run serves on opts.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	s.logger.Info("stopped")
	return err
}
