// Package api provides the HTTP and gRPC servers for tickerlab, exposing bar
// retrieval, backtests and free-text queries.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tickerlab/internal/config"
	"tickerlab/internal/engine"
	"tickerlab/internal/metrics"
	"tickerlab/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Store is the slice of the relational store served directly by the API.
type Store interface {
	store.InstrumentStore
	store.BacktestStore
}

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	engine   *engine.Engine
	store    Store
	metrics  *metrics.Metrics
	log      *slog.Logger
	httpAddr string
	grpcAddr string
}

// NewServer creates a Server listening on the addresses in cfg. m may be nil.
func NewServer(cfg *config.Config, e *engine.Engine, s Store, m *metrics.Metrics) *Server {
	return &Server{
		engine:   e,
		store:    s,
		metrics:  m,
		log:      slog.Default().With("component", "api"),
		httpAddr: cfg.HTTPAddr(),
		grpcAddr: cfg.GRPCAddr(),
	}
}

// RegisterRoutes registers all HTTP routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /api/v1/bars", s.handleBars)
	mux.HandleFunc("POST /api/v1/backtests", s.handleRunBacktest)
	mux.HandleFunc("GET /api/v1/backtests", s.handleListBacktests)
	mux.HandleFunc("GET /api/v1/backtests/{id}", s.handleGetBacktest)
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("GET /api/v1/instruments", s.handleListInstruments)
	mux.HandleFunc("DELETE /api/v1/instruments/{ticker}", s.handleDeleteInstrument)
}

// Handler returns an http.Handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(corsMiddleware(mux))
}

// GRPCServer returns a gRPC server with the market data and health services
// registered.
func (s *Server) GRPCServer() *grpc.Server {
	gs := grpc.NewServer()
	RegisterMarketDataServer(gs, NewMarketDataService(s.engine))

	hs := health.NewServer()
	hs.SetServingStatus(MarketDataServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until ctx is
// cancelled or either listener fails. Both servers are shut down gracefully
// before it returns.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              s.httpAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	gs := s.GRPCServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", s.httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.log.Info("gRPC server listening", "addr", lis.Addr().String())
		return gs.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down API servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		gs.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
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

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
	})
}
