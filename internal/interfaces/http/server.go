package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundboard/internal/interfaces/http/handlers"
	"github.com/sawpanic/fundboard/internal/metrics"
)

// Server is the dashboard web server
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *handlers.Handlers
	metrics  *metrics.Registry
	config   ServerConfig

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration // Applied to every route except the websocket stream
	AllowOrigin    string        // CORS origin, "*" for any
	LiveUpdates    bool
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "127.0.0.1",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 12 * time.Second,
		AllowOrigin:    "*",
		LiveUpdates:    true,
	}
}

// NewServer creates a new HTTP server instance
func NewServer(config ServerConfig, h *handlers.Handlers, reg *metrics.Registry) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		router:     mux.NewRouter(),
		handlers:   h,
		metrics:    reg,
		config:     config,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	if s.config.LiveUpdates {
		s.router.HandleFunc("/ws", s.handlers.Stream).Methods(http.MethodGet)
	}

	pages := s.router.NewRoute().Subrouter()
	pages.Use(s.timeoutMiddleware)
	pages.HandleFunc("/", s.handlers.Page).Methods(http.MethodGet, http.MethodOptions)
	pages.HandleFunc("/panels/{panel}", s.handlers.Panel).Methods(http.MethodGet, http.MethodOptions)
	pages.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet, http.MethodOptions)
	pages.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("port %d is busy or unavailable: %w", s.config.Port, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on l
func (s *Server) Serve(l net.Listener) error {
	log.Info().
		Str("address", l.Addr().String()).
		Bool("live_updates", s.config.LiveUpdates).
		Msg("Starting dashboard server")

	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server. Cancelling the base context
// ends open websocket sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down dashboard server")
	s.cancelBase()
	return s.server.Shutdown(ctx)
}

// Address returns the server address
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}
