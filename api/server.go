// Package api serves the data, analysis, alert and live-event endpoints.
package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"solar-impact-insights/cache"
	"solar-impact-insights/database"
	"solar-impact-insights/logger"
	"solar-impact-insights/pipeline"
	"solar-impact-insights/realtime"
)

// Collector runs the ingestion pipeline. *pipeline.Runner implements it.
type Collector interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*pipeline.RunReport, error)
}

// Options wires a Server.
type Options struct {
	Repo   *database.Repository
	Live   Collector
	Mock   Collector
	Broker *realtime.Broker
	Cache  *cache.AnalysisCache

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	RunOptions pipeline.RunOptions
	// DefaultMock selects the mock collector when use_mock is not given.
	DefaultMock bool
}

// Server handles HTTP API requests
type Server struct {
	repo        *database.Repository
	live        Collector
	mock        Collector
	broker      *realtime.Broker
	cache       *cache.AnalysisCache
	gatherer    prometheus.Gatherer
	runOpts     pipeline.RunOptions
	defaultMock bool
	log         *zap.Logger
	now         func() time.Time
}

// NewServer creates a new API server instance
func NewServer(opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		repo:        opts.Repo,
		live:        opts.Live,
		mock:        opts.Mock,
		broker:      opts.Broker,
		cache:       opts.Cache,
		gatherer:    opts.Gatherer,
		runOpts:     opts.RunOptions,
		defaultMock: opts.DefaultMock,
		log:         log,
		now:         time.Now,
	}
}

// Handler builds the routed handler with middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	// Data Routes
	mux.HandleFunc("POST /api/data/collect", s.handleCollect)
	mux.HandleFunc("GET /api/data/events", s.handleGetEvents)
	mux.HandleFunc("GET /api/data/high-intensity", s.handleHighIntensity)
	mux.HandleFunc("GET /api/data/summary", s.handleSummary)
	mux.HandleFunc("GET /api/data/export", s.handleExport)

	// Analysis Routes
	mux.HandleFunc("POST /api/analysis/correlations", s.handleCorrelations)
	mux.HandleFunc("POST /api/analysis/clustering", s.handleClustering)
	mux.HandleFunc("POST /api/analysis/prediction", s.handlePrediction)

	// Alert Routes
	mux.HandleFunc("GET /api/alerts", s.handleGetAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/resolve", s.handleResolveAlert)

	// Metrics Routes
	mux.HandleFunc("GET /api/metrics/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/metrics/correlations", s.handleCorrelationMetrics)
	mux.HandleFunc("GET /api/metrics/anomalies", s.handleAnomalies)
	mux.HandleFunc("GET /api/metrics/monthly", s.handleMonthlyActivity)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Live event streams
	if s.broker != nil {
		mux.Handle("GET /api/events", s.broker) // SSE Endpoint
		mux.HandleFunc("GET /api/ws", s.broker.WebsocketHandler())
	}

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("🚀 API Server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("🛑 API Server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", requestID),
		)
	})
}
