// Package api exposes the payment ledger over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides the payment and refund endpoints.
type Server struct {
	svc     *service.Service
	config  Config
	router  *mux.Router
	server  *http.Server
	metrics *httpMetrics
	logger  *logging.Logger
}

// Config holds configuration for the API server.
type Config struct {
	// Address to listen on (e.g., ":8080")
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxBodyBytes caps request bodies; larger bodies get 413
	MaxBodyBytes int64

	// Service and Version are reported by /health
	Service string
	Version string

	// Database is probed by /health. Nil reports the database as connected.
	Database func(ctx context.Context) error

	// Registry receives the HTTP metrics and is served at MetricsPath.
	// Nil creates a private registry.
	Registry    *prometheus.Registry
	Namespace   string
	MetricsPath string

	Logger *logging.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Address:      ":8080",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		MaxBodyBytes: 1 << 20,
		Service:      "payment-ledger",
		Version:      "dev",
		Namespace:    "payledger",
		MetricsPath:  "/metrics",
	}
}

// NewServer creates the HTTP server for svc. It fails only when the HTTP
// metrics cannot be registered.
func NewServer(svc *service.Service, config Config) (*Server, error) {
	def := DefaultConfig()
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = def.MaxBodyBytes
	}
	if config.Service == "" {
		config.Service = def.Service
	}
	if config.Version == "" {
		config.Version = def.Version
	}
	if config.MetricsPath == "" {
		config.MetricsPath = def.MetricsPath
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Logger == nil {
		config.Logger = logging.L()
	}

	m := newHTTPMetrics(config.Namespace)
	if err := m.register(config.Registry); err != nil {
		return nil, err
	}

	s := &Server{
		svc:     svc,
		config:  config,
		metrics: m,
		logger:  config.Logger.Named("api"),
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	r.Use(requestID, s.accessLog, s.metrics.middleware, s.limitBody)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Routes hang off r itself so a known path with the wrong method gets
	// 405 rather than the 404 a subrouter would give.
	const v1 = "/api/v1"
	r.HandleFunc(v1+"/payments", s.handleCreatePayment).Methods(http.MethodPost)
	r.HandleFunc(v1+"/payments", s.handleListPayments).Methods(http.MethodGet)
	r.HandleFunc(v1+"/payments/{id}", s.handleGetPayment).Methods(http.MethodGet)
	r.HandleFunc(v1+"/payments/{id}/process", s.handleProcessPayment).Methods(http.MethodPost)
	r.HandleFunc(v1+"/payments/{id}/refunds", s.handleCreateRefund).Methods(http.MethodPost)
	r.HandleFunc(v1+"/payments/{id}/refund", s.handleCreateRefund).Methods(http.MethodPost)
	r.HandleFunc(v1+"/payments/{id}/refunds", s.handleListRefunds).Methods(http.MethodGet)
	r.HandleFunc(v1+"/payments/{id}/transactions", s.handleTransactions).Methods(http.MethodGet)
	r.HandleFunc(v1+"/refunds/{id}", s.handleGetRefund).Methods(http.MethodGet)
	r.HandleFunc(v1+"/refunds/{id}/complete", s.handleCompleteRefund).Methods(http.MethodPost)

	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving requests until Shutdown is called.
// A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.config.Address))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
