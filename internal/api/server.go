package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
	"github.com/nerrad567/gray-logic-airpurifier/internal/history"
	"github.com/nerrad567/gray-logic-airpurifier/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-airpurifier/internal/infrastructure/logging"
)

const gracefulShutdownTimeout = 10 * time.Second

// AccessorySource exposes the accessories built by the bridge platform.
type AccessorySource interface {
	Accessories() []*accessory.Accessory
	Accessory(id string) *accessory.Accessory
}

// HealthCheckFunc reports the health of one dependency.
type HealthCheckFunc func(ctx context.Context) error

// Deps holds the dependencies of the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Accessories AccessorySource

	// History is optional; without it the history route answers 503.
	History history.Repository

	// Gatherer serves /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Registerer, if set, receives the WebSocket client gauge.
	Registerer prometheus.Registerer

	// HealthChecks are run by the health route, keyed by component name.
	HealthChecks map[string]HealthCheckFunc

	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secret       []byte
	logger       *logging.Logger
	accessories  AccessorySource
	history      history.Repository
	gatherer     prometheus.Gatherer
	healthChecks map[string]HealthCheckFunc
	version      string
	startedAt    time.Time

	hub    *Hub
	server *http.Server
	cancel context.CancelFunc
}

// New validates the dependencies and builds the server. Nothing listens
// until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Accessories == nil {
		return nil, fmt.Errorf("accessory source is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secret:       []byte(deps.Security.JWT.Secret),
		logger:       deps.Logger,
		accessories:  deps.Accessories,
		history:      deps.History,
		gatherer:     gatherer,
		healthChecks: deps.HealthChecks,
		version:      deps.Version,
		startedAt:    time.Now(),
		hub:          NewHub(deps.WS, deps.Logger),
	}

	if deps.Registerer != nil {
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "airpurifier",
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients.",
		}, func() float64 { return float64(s.hub.ClientCount()) })
		if err := deps.Registerer.Register(gauge); err != nil {
			return nil, fmt.Errorf("registering websocket gauge: %w", err)
		}
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// PublishEvent forwards a characteristic change to WebSocket subscribers.
// It has the accessory.Observer signature.
func (s *Server) PublishEvent(e accessory.Event) {
	s.hub.BroadcastEvent(e)
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close stops the hub and waits up to 10 seconds for in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
