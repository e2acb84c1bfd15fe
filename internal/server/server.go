// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/monclaw/arena/internal/arena"
	"github.com/monclaw/arena/internal/chain"
	"github.com/monclaw/arena/internal/config"
	"github.com/monclaw/arena/internal/debate"
	"github.com/monclaw/arena/internal/gate"
	"github.com/monclaw/arena/internal/idgen"
	"github.com/monclaw/arena/internal/logging"
	"github.com/monclaw/arena/internal/metrics"
	"github.com/monclaw/arena/internal/ratelimit"
	"github.com/monclaw/arena/internal/realtime"
	"github.com/monclaw/arena/internal/registry"
	"github.com/monclaw/arena/internal/security"
	"github.com/monclaw/arena/internal/traces"
	"github.com/monclaw/arena/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	agents      registry.Store
	debateSvc   *debate.Service
	arenaSvc    *arena.Service
	watcher     *arena.Watcher
	voteGate    *gate.Gate
	realtimeHub *realtime.Hub
	rateLimiter *ratelimit.Limiter
	contract    chain.ArenaContract
	chainClient *chain.Client // nil when a contract is injected for tests
	db          *sql.DB       // nil if using in-memory
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger

	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run
	tracerShutdown func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithContract sets a custom chain contract (for testing)
func WithContract(c chain.ArenaContract) Option {
	return func(s *Server) {
		s.contract = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set contract/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var debateStore debate.Store
	var arenaStore arena.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.agents = registry.NewPostgresStore(db)
		debateStore = debate.NewPostgresStore(db)
		arenaStore = arena.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.agents = registry.NewMemoryStore()
		debateStore = debate.NewMemoryStore()
		arenaStore = arena.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Create chain client if not injected
	if s.contract == nil {
		client, err := chain.New(chain.Config{
			RPCURL:          cfg.RPCURL,
			PrivateKey:      cfg.PrivateKey,
			ChainID:         cfg.ChainID,
			ContractAddress: cfg.ArenaContract,
			ConfirmTimeout:  90 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create chain client: %w", err)
		}
		s.contract = client
		s.chainClient = client
		if cfg.ArenaContract == "" {
			s.logger.Warn("no arena contract configured, on-chain operations disabled")
		} else {
			s.logger.Info("chain client connected",
				"rpc", cfg.RPCURL,
				"chain_id", cfg.ChainID,
				"contract", cfg.ArenaContract,
				"wallet", client.Address(),
			)
		}
	}

	// Spectator vote gate (balance check with configurable fail-open)
	g, err := gate.New(s.contract, cfg.MinSpectatorBalance, cfg.GateFailOpen, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vote gate: %w", err)
	}
	s.voteGate = g

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)

	// Debate service (off-chain record)
	s.debateSvc = debate.NewService(debateStore, s.agents, s.logger)
	s.debateSvc.SetVoteGate(s.voteGate)
	s.debateSvc.SetNotifier(s.realtimeHub)

	// Arena service (on-chain mirror)
	explorer := chain.NewExplorer(cfg.ExplorerURL)
	s.arenaSvc = arena.NewService(arenaStore, s.contract, s.debateSvc, arena.Defaults{
		StakeMON:    cfg.DefaultStake,
		VoteMON:     cfg.DefaultVote,
		DurationSec: cfg.DefaultDuration,
	}, explorer, s.logger)
	s.arenaSvc.SetWinnerDirectory(s.agents)
	s.arenaSvc.SetEvents(s.realtimeHub)

	// Debate deadlines come from the mirrored arena endTime
	s.debateSvc.SetEndTimeSource(s.arenaSvc)

	// Reconciliation watcher repairs mirror drift from contract events
	if s.chainClient != nil && cfg.ArenaContract != "" {
		watcherCfg := arena.DefaultWatcherConfig()
		watcherCfg.ContractAddr = cfg.ArenaContract
		s.watcher = arena.NewWatcher(s.chainClient, arenaStore, s.debateSvc, watcherCfg, s.logger)
		s.logger.Info("reconciliation watcher configured", "contract", cfg.ArenaContract)
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	limiterCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		limiterCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	}
	s.rateLimiter = ratelimit.New(limiterCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.WithPrefix("req_")
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Public pages
	s.router.GET("/", dashboardHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	registryHandler := registry.NewHandler(s.agents)
	if s.voteGate != nil {
		registryHandler.SetWalletGate(s.voteGate)
	}
	registryHandler.RegisterRoutes(v1)

	debateHandler := debate.NewHandler(s.debateSvc)
	debateHandler.RegisterRoutes(v1)

	arenaHandler := arena.NewHandler(s.arenaSvc)
	arenaHandler.RegisterRoutes(v1)

	// Admin routes (X-Admin-Secret header)
	admin := v1.Group("/admin")
	admin.Use(s.requireAdmin())
	admin.POST("/scan", s.scanHandler)
}

// requireAdmin checks the X-Admin-Secret header against the configured secret.
// With no secret configured, admin routes are disabled entirely.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" || c.GetHeader("X-Admin-Secret") != s.cfg.AdminSecret {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin access denied",
			})
			return
		}
		c.Next()
	}
}

// scanHandler triggers an immediate reconciliation scan
func (s *Server) scanHandler(c *gin.Context) {
	if s.watcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "watcher_disabled",
			"message": "No contract configured, nothing to reconcile",
		})
		return
	}
	if err := s.watcher.Scan(c.Request.Context()); err != nil {
		logging.L(c.Request.Context()).Error("manual scan failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "scan_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "scanned"})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]string)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if s.chainClient != nil {
		if _, err := s.chainClient.BlockNumber(ctx); err != nil {
			checks["rpc"] = "unhealthy"
		} else {
			checks["rpc"] = "healthy"
		}
	}

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
		} else {
			checks["database"] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	for _, v := range checks {
		if v != "healthy" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Monclaw Arena",
		"description": "Timed structured debates between autonomous agents with on-chain wagered settlement",
		"version":     "0.1.0",
		"chain":       "monad-testnet",
		"chainId":     s.cfg.ChainID,
		"contract":    s.cfg.ArenaContract,
		"currency":    "MON",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op without an OTLP endpoint)
	shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracerShutdown = shutdown
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second, // on-chain calls block until confirmation
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
			"signer", s.contract.Address(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start reconciliation watcher
	if s.watcher != nil {
		if err := s.watcher.Start(runCtx); err != nil {
			s.logger.Error("failed to start reconciliation watcher", "error", err)
		}
	}

	// Export DB pool stats
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, watcher)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.watcher != nil {
		s.watcher.Stop()
		s.logger.Info("reconciliation watcher stopped")
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.tracerShutdown != nil {
		if err := s.tracerShutdown(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}

	if err := s.contract.Close(); err != nil {
		s.logger.Error("chain client close error", "error", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

