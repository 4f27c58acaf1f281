package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/apiresponses"
	"github.com/telekom/autofix-notifier/pkg/audit"
	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/metrics"
	"github.com/telekom/autofix-notifier/pkg/ratelimit"
	"github.com/telekom/autofix-notifier/pkg/version"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// AuditHealth reports the state of the queued audit sinks.
type AuditHealth interface {
	Health() []audit.QueuedSinkHealth
}

type Server struct {
	gin         *gin.Engine
	config      config.Config
	log         *zap.SugaredLogger
	rateLimiter *ratelimit.IPRateLimiter
	auditHealth AuditHealth
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		CorrelationID(log.Sugar()),
		RequestMetrics(),
	)

	if origins := allowedOrigins(cfg.Server, debug); len(origins) > 0 {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins:  origins,
				AllowMethods:  []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:  []string{"Origin", "Content-Type", RequestIDHeader},
				ExposeHeaders: []string{RequestIDHeader},
				MaxAge:        12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:         engine,
		config:      cfg,
		log:         log.Sugar().Named("api"),
		rateLimiter: ratelimit.New(ratelimit.FromServerConfig(cfg.Server.RateLimit)),
	}

	engine.GET("api/healthz", s.healthz)
	engine.GET("api/version", s.version)
	engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))

	return s
}

// allowedOrigins returns the configured CORS origins; debug mode adds the local
// development origins.
func allowedOrigins(cfg config.Server, debug bool) []string {
	origins := append([]string(nil), cfg.AllowedOrigins...)
	if debug && len(origins) == 0 {
		origins = append(origins, "http://localhost:5173", "http://127.0.0.1:8080")
	}
	return origins
}

// RegisterAll mounts every controller below /api behind the rate limiter.
func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api", s.rateLimiter.Middleware())
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// SetAuditHealth makes /api/healthz report the audit queues.
func (s *Server) SetAuditHealth(h AuditHealth) {
	s.auditHealth = h
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	timeouts := s.config.Server.GetServerTimeouts()
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadTimeout:       timeouts.GetReadTimeout(),
		ReadHeaderTimeout: timeouts.GetReadHeaderTimeout(),
		WriteTimeout:      timeouts.GetWriteTimeout(),
		IdleTimeout:       timeouts.GetIdleTimeout(),
		MaxHeaderBytes:    timeouts.GetMaxHeaderBytes(),
	}
	tls := s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != ""

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Starting API server", "address", srv.Addr, "tls", tls)
		var err error
		if tls {
			err = srv.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infow("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

func (s *Server) healthz(c *gin.Context) {
	if s.auditHealth == nil {
		apiresponses.RespondOK(c, gin.H{"status": "ok"})
		return
	}
	queues := s.auditHealth.Health()
	for _, q := range queues {
		if !q.Healthy {
			s.log.Warnw("Audit queue unhealthy", "sink", q.Name, "length", q.QueueLength, "capacity", q.QueueCapacity)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "audit": queues})
			return
		}
	}
	apiresponses.RespondOK(c, gin.H{"status": "ok", "audit": queues})
}

func (s *Server) version(c *gin.Context) {
	apiresponses.RespondOK(c, version.GetBuildInfo())
}
