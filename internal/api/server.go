// Package api provides the HTTP REST and WebSocket API for portsweep.
// It exposes scan control endpoints, a streaming WebSocket, health, metrics
// and Swagger documentation.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/anstrom/portsweep/docs/swagger"
	apihandlers "github.com/anstrom/portsweep/internal/api/handlers"
	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/auth"
	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanner"
	"github.com/anstrom/portsweep/internal/scanning"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	maxHeaderBytes        = 1 << 20
)

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     *config.Config
	manager    *scanner.Manager
	websocket  *apihandlers.WebSocketHandler
	logger     *logging.Logger
	metrics    *metrics.PrometheusMetrics
	startTime  time.Time
}

// New creates a new API server instance. A nil metrics uses the global
// instance.
func New(cfg *config.Config, manager *scanner.Manager, m *metrics.PrometheusMetrics,
	build apihandlers.BuildInfo) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("scan manager is required")
	}
	if m == nil {
		m = metrics.GetGlobalMetrics()
	}
	if cfg.API.StaticDir != "" {
		if info, err := os.Stat(cfg.API.StaticDir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("static directory %q is not a directory", cfg.API.StaticDir)
		}
	}

	swagger.SwaggerInfo.Version = build.Version

	server := &Server{
		router:    mux.NewRouter(),
		config:    cfg,
		manager:   manager,
		logger:    logging.Default().WithComponent("api"),
		metrics:   m,
		startTime: time.Now(),
	}

	server.setupRoutes(build)
	server.handler = server.wrapHandler(server.router)

	server.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.API.ListenAddr, strconv.Itoa(cfg.API.Port)),
		Handler:           server.handler,
		ReadTimeout:       cfg.API.ReadTimeout,
		ReadHeaderTimeout: cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	return server, nil
}

// Start starts the API server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on an existing listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("Starting API server",
		"address", listener.Addr().String(),
		"auth", s.config.IsAuthEnabled(),
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server. WebSocket clients are disconnected
// first since Shutdown does not track hijacked connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	if err := s.websocket.Close(); err != nil {
		s.logger.Warn("WebSocket shutdown error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully", "uptime", time.Since(s.startTime).Round(time.Second))
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(build apihandlers.BuildInfo) {
	defaults := apihandlers.ScanDefaults{
		Ports:   s.config.Scanning.DefaultPorts,
		Speed:   scanning.Speed(s.config.Scanning.DefaultSpeed),
		Timeout: s.config.Scanning.DefaultTimeout,
	}

	var verifier *auth.Verifier
	if s.config.IsAuthEnabled() {
		verifier = auth.NewVerifier(s.config.API.APIKeyHash)
	}
	authenticate := middleware.Authentication(verifier, s.logger, "/api/v1/health", "/api/v1/version")

	health := apihandlers.NewHealthHandler(s.manager, build, s.logger)
	scans := apihandlers.NewScanHandler(s.manager, defaults, s.logger)
	s.websocket = apihandlers.NewWebSocketHandler(s.manager, defaults, s.logger, s.metrics, s.checkOrigin)

	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	if s.config.Logging.RequestLogging {
		s.router.Use(middleware.Logging(s.logger))
	}
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.SecurityHeaders())

	// API version prefix
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(authenticate)
	api.Use(middleware.MaxBodySize(s.config.API.MaxRequestSize))
	api.Use(middleware.ContentType())

	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	api.HandleFunc("/version", health.Version).Methods(http.MethodGet)

	api.HandleFunc("/scans", scans.ListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans", scans.CreateScan).Methods(http.MethodPost)
	api.HandleFunc("/scans/{id}", scans.GetScan).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", scans.StopScan).Methods(http.MethodDelete)

	s.router.Handle("/ws", authenticate(http.HandlerFunc(s.websocket.ServeWS))).Methods(http.MethodGet)

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	// Swagger documentation endpoints
	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))

	// Documentation aliases
	s.router.HandleFunc("/docs", redirectToSwagger).Methods(http.MethodGet)
	s.router.HandleFunc("/api-docs", redirectToSwagger).Methods(http.MethodGet)

	if s.config.API.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.API.StaticDir)))
	} else {
		s.router.HandleFunc("/", s.apiIndex).Methods(http.MethodGet)
	}
}

// wrapHandler applies handlers that must see every request, including CORS
// preflights that match no route.
func (s *Server) wrapHandler(h http.Handler) http.Handler {
	cors := s.config.API.CORS
	if !cors.Enabled {
		return h
	}
	return handlers.CORS(
		handlers.AllowedOrigins(cors.AllowedOrigins),
		handlers.AllowedMethods(cors.AllowedMethods),
		handlers.AllowedHeaders(cors.AllowedHeaders),
		handlers.ExposedHeaders([]string{middleware.RequestIDHeader, "Location"}),
	)(h)
}

// checkOrigin applies the CORS origin list to WebSocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || !s.config.API.CORS.Enabled {
		return true
	}
	for _, allowed := range s.config.API.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// apiIndex returns API information for root requests.
func (s *Server) apiIndex(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"service": "portsweep API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":    "/api/v1/health",
			"scans":     "/api/v1/scans",
			"websocket": "/ws",
			"metrics":   s.config.Metrics.Path,
			"docs":      "/swagger/",
		},
		"timestamp": time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, response, s.logger)
}

// redirectToSwagger redirects to the Swagger UI.
func redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}
