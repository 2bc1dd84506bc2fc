// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/token-gate/internal/gate"
	"github.com/token-gate/internal/logging"
	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/oracle"
	"github.com/token-gate/internal/service"
	"github.com/token-gate/internal/types"
)

// Service interfaces for dependency injection and testing

// MembershipServiceInterface defines membership state machine operations.
type MembershipServiceInterface interface {
	RequestVerification(ctx context.Context, accountID, walletAddress, reference string) (*types.MembershipStatus, error)
	Grant(ctx context.Context, capability gate.Capability, accountID string) (*types.MembershipStatus, error)
	Revoke(ctx context.Context, capability gate.Capability, accountID string) (*types.MembershipStatus, error)
	Status(ctx context.Context, accountID string) (*types.MembershipStatus, error)
}

// StakingServiceInterface defines staking ledger operations.
type StakingServiceInterface interface {
	Stake(ctx context.Context, accountID string, amount decimal.Decimal) (*types.PositionSnapshot, error)
	Unstake(ctx context.Context, accountID string, amount decimal.Decimal) (*types.PositionSnapshot, error)
	Claim(ctx context.Context, accountID string) (*service.ClaimResult, error)
	PositionOf(ctx context.Context, accountID string) (*types.PositionSnapshot, error)
	SetAPY(ctx context.Context, capability gate.Capability, basisPoints int64) error
	PoolInfo(ctx context.Context) (*types.PoolInfo, error)
}

// ConfigStoreInterface defines config snapshot operations.
type ConfigStoreInterface interface {
	Get() *models.ConfigSnapshot
	Update(ctx context.Context, capability gate.Capability, patch *models.ConfigPatch) (*models.ConfigSnapshot, error)
}

// EventHistoryInterface lists recorded staking events.
type EventHistoryInterface interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.StakingEvent, error)
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	membership  MembershipServiceInterface
	staking     StakingServiceInterface
	configStore ConfigStoreInterface
	history     EventHistoryInterface
	balances    oracle.BalanceOracle
	adminGate   *gate.AdminGate
	logger      *logging.Logger
	config      *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int
	Burst           int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	membership MembershipServiceInterface,
	staking StakingServiceInterface,
	configStore ConfigStoreInterface,
	history EventHistoryInterface,
	balances oracle.BalanceOracle,
	adminGate *gate.AdminGate,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		membership:  membership,
		staking:     staking,
		configStore: configStore,
		history:     history,
		balances:    balances,
		adminGate:   adminGate,
		logger:      logger,
		config:      config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec, s.config.Burst)

	// Middleware order matters: logging wraps everything, recovery
	// before any handler can panic, rate limiting after CORS so
	// preflights are never throttled.
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Config endpoints
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	// Membership endpoints
	api.HandleFunc("/membership/{accountId}/verify", s.handleRequestVerification).Methods("POST")
	api.HandleFunc("/membership/{accountId}", s.handleMembershipStatus).Methods("GET")

	// Staking endpoints
	api.HandleFunc("/staking/pool", s.handlePoolInfo).Methods("GET")
	api.HandleFunc("/staking/{accountId}/stake", s.handleStake).Methods("POST")
	api.HandleFunc("/staking/{accountId}/unstake", s.handleUnstake).Methods("POST")
	api.HandleFunc("/staking/{accountId}/claim", s.handleClaim).Methods("POST")
	api.HandleFunc("/staking/{accountId}/history", s.handleStakingHistory).Methods("GET")
	api.HandleFunc("/staking/{accountId}", s.handleStakingPosition).Methods("GET")

	// Wallet balance endpoint
	api.HandleFunc("/wallet/{address}/balance", s.handleWalletBalance).Methods("GET")

	// Admin endpoints
	admin := api.NewRoute().Subrouter()
	admin.Use(AdminMiddleware(s.adminGate))
	admin.HandleFunc("/config", s.handleUpdateConfig).Methods("PATCH")
	admin.HandleFunc("/membership/{accountId}/grant", s.handleGrant).Methods("POST")
	admin.HandleFunc("/membership/{accountId}/revoke", s.handleRevoke).Methods("POST")
	admin.HandleFunc("/staking/apy", s.handleSetAPY).Methods("PUT")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "token-gate",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Handler exposes the configured router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
