package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"aurafx-engine/internal/analyzer"
	"aurafx-engine/internal/cache"
	"aurafx-engine/internal/database"
	"aurafx-engine/internal/events"
	"aurafx-engine/internal/logging"
	"aurafx-engine/internal/metrics"
	"aurafx-engine/internal/scanner"
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// StatusProvider reports a component's runtime stats for /api/status
type StatusProvider func() interface{}

// ReportHistory lists archived reports
type ReportHistory interface {
	RecentReports(ctx context.Context, symbol string, limit int) ([]*database.ReportRecord, error)
}

// CacheInvalidator drops cached state for a symbol
type CacheInvalidator interface {
	InvalidateSymbol(ctx context.Context, symbol string) error
}

// ScanSource exposes the watchlist scanner
type ScanSource interface {
	GetLastResult() *scanner.ScanResult
	RunNow(ctx context.Context) *scanner.ScanResult
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig

	analyzer    *analyzer.Service
	scanner     ScanSource
	reports     *cache.ReportCache
	history     ReportHistory
	invalidator CacheInvalidator
	eventBus    *events.EventBus
	hub         *WSHub
	rateLimiter *RateLimiter

	mu           sync.RWMutex
	healthChecks map[string]HealthCheck
	statuses     map[string]StatusProvider

	log     *logging.Logger
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string // "*" allows any origin
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimit      int // requests per minute per client IP, 0 disables
	MetricsPath    string // empty leaves /metrics unmounted
}

// NewServer creates a new API server. eventBus may be nil, in which case
// the WebSocket stream carries no events.
func NewServer(config ServerConfig, svc *analyzer.Service, eventBus *events.EventBus) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 15 * time.Second
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if allowAnyOrigin(config.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:       router,
		config:       config,
		analyzer:     svc,
		eventBus:     eventBus,
		hub:          NewWSHub(config.AllowedOrigins),
		healthChecks: make(map[string]HealthCheck),
		statuses:     make(map[string]StatusProvider),
		log:          logging.WithComponent("api"),
		started:      time.Now(),
	}
	if config.RateLimit > 0 {
		server.rateLimiter = NewRateLimiter(config.RateLimit, time.Minute)
	}

	router.Use(server.requestLogMiddleware())
	server.setupRoutes()

	go server.hub.Run()
	if eventBus != nil {
		eventBus.SubscribeAll(server.hub.BroadcastEvent)
	}

	return server
}

// SetScanner enables the scanner endpoints
func (s *Server) SetScanner(sc ScanSource) { s.scanner = sc }

// SetReportCache enables the cached scan snapshot fallback
func (s *Server) SetReportCache(rc *cache.ReportCache) { s.reports = rc }

// SetReportHistory enables the report history endpoint
func (s *Server) SetReportHistory(h ReportHistory) { s.history = h }

// SetCacheInvalidator enables cache invalidation
func (s *Server) SetCacheInvalidator(ci CacheInvalidator) { s.invalidator = ci }

// AddHealthCheck registers a dependency probed by /health
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthChecks[name] = check
}

// AddStatusProvider registers a component reported by /api/status
func (s *Server) AddStatusProvider(name string, provider StatusProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[name] = provider
}

// Handler returns the router
func (s *Server) Handler() http.Handler { return s.router }

// requestLogMiddleware logs each request and counts it by route
func (s *Server) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, _ := logging.WithTraceContext(c.Request.Context())
		traceID := logging.TraceIDFromContext(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", traceID)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()

		log := logging.APIContext(c.Request.Method, c.Request.URL.Path, status).WithTraceID(traceID)
		if status >= http.StatusInternalServerError {
			log.Warn("request failed", "duration_ms", time.Since(start).Milliseconds(), "client_ip", c.ClientIP())
			return
		}
		log.Debug("request", "duration_ms", time.Since(start).Milliseconds(), "client_ip", c.ClientIP())
	}
}

// rateLimitMiddleware limits requests per client IP
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil {
			c.Next()
			return
		}

		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "Too many requests. Please slow down.",
				"path":    c.Request.URL.Path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	if s.config.MetricsPath != "" {
		s.router.GET(s.config.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	s.router.GET("/ws/signals", s.handleWebSocket)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)

		// Analysis endpoints
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/signals/:symbol", s.handleGetSignal)
		api.GET("/signals/:symbol/latest", s.handleGetLatestSignal)
		api.GET("/signals/:symbol/mtf", s.handleGetMultiTimeframe)
		api.GET("/signals/:symbol/history", s.handleGetSignalHistory)
		api.POST("/mtf/resolve", s.handleResolve)

		// Scanner endpoints
		api.GET("/scanner/latest", s.handleScannerLatest)
		api.POST("/scanner/run", s.handleScannerRun)

		// Cache endpoints
		api.DELETE("/cache/:symbol", s.handleInvalidateCache)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server...")
	s.hub.Stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	s.mu.RLock()
	checks := make(map[string]HealthCheck, len(s.healthChecks))
	for name, check := range s.healthChecks {
		checks[name] = check
	}
	s.mu.RUnlock()

	healthy := true
	deps := make(map[string]string, len(checks))
	for name, check := range checks {
		if err := check(ctx); err != nil {
			healthy = false
			deps[name] = "unhealthy"
			continue
		}
		deps[name] = "healthy"
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"dependencies": deps,
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"ws_clients":   s.hub.GetClientCount(),
	})
}

// handleStatus reports the runtime stats of registered components
func (s *Server) handleStatus(c *gin.Context) {
	s.mu.RLock()
	providers := make(map[string]StatusProvider, len(s.statuses))
	for name, p := range s.statuses {
		providers[name] = p
	}
	s.mu.RUnlock()

	status := make(map[string]interface{}, len(providers)+1)
	for name, p := range providers {
		status[name] = p()
	}
	status["websocket_clients"] = s.hub.GetClientCount()
	successResponse(c, status)
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func allowAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
