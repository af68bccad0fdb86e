package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/communities-core/internal/account"
	"github.com/nerrad567/communities-core/internal/audit"
	"github.com/nerrad567/communities-core/internal/auth"
	"github.com/nerrad567/communities-core/internal/community"
	"github.com/nerrad567/communities-core/internal/infrastructure/config"
	"github.com/nerrad567/communities-core/internal/infrastructure/database"
	"github.com/nerrad567/communities-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports whether an optional outbound connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Accounts    *account.Service
	Communities community.Repository
	Codec       *auth.TokenCodec

	// AdminRules are the compiled community-admin path rules.
	AdminRules []auth.PathRule

	Audit    account.AuditRecorder // optional: records community changes
	AuditLog audit.Repository      // optional: serves GET /communities/{id}/audit

	DB      *database.DB      // optional: health and pool metrics
	MQTT    ConnectionStatus  // optional
	Influx  ConnectionStatus  // optional
	Gate    auth.GateRecorder // optional: per-request filter outcomes
	Version string
}

// Server is the HTTP API server for Communities Core.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	accounts    *account.Service
	communities community.Repository
	pipeline    auth.Pipeline
	audit       account.AuditRecorder
	auditLog    audit.Repository
	db          *database.DB
	mqtt        ConnectionStatus
	influx      ConnectionStatus
	version     string
	startTime   time.Time
	server      *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("account service is required")
	}
	if deps.Communities == nil {
		return nil, fmt.Errorf("community repository is required")
	}
	if deps.Codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if len(deps.Security.Bearer.Secret) < auth.MinSecretLength {
		return nil, auth.ErrWeakKey
	}

	status := deps.Security.RejectionStatus
	if status == 0 {
		status = http.StatusForbidden
	}

	s := &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		accounts:    deps.Accounts,
		communities: deps.Communities,
		audit:       deps.Audit,
		auditLog:    deps.AuditLog,
		db:          deps.DB,
		mqtt:        deps.MQTT,
		influx:      deps.Influx,
		version:     deps.Version,
		startTime:   time.Now(),
	}

	gateLogger := deps.Logger.With("component", "auth-gate")
	s.pipeline = auth.Pipeline{
		Authentication: auth.NewAuthenticationFilter(deps.Codec, auth.AuthenticationOptions{
			Header: deps.Security.Bearer.Header,
			Prefix: deps.Security.Bearer.Prefix,
			Secret: []byte(deps.Security.Bearer.Secret),
		}, gateLogger, deps.Gate),
		Authorization: auth.NewAuthorizationFilter(deps.AdminRules, deps.Communities,
			status, denyRequest, gateLogger, deps.Gate),
	}

	return s, nil
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
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

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
