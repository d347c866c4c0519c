package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quotagate/quotagate/internal/config"
	"github.com/quotagate/quotagate/internal/handler"
	"github.com/quotagate/quotagate/internal/middleware"
	"github.com/quotagate/quotagate/internal/proxy"
	"github.com/quotagate/quotagate/internal/ratelimit"
	"github.com/quotagate/quotagate/internal/repository"
	"github.com/quotagate/quotagate/internal/service"
	"github.com/quotagate/quotagate/internal/storage"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	redis    *storage.RedisClient
	postgres *storage.Postgres

	limiter  *ratelimit.Limiter
	recorder *middleware.RequestRecorder

	requireAuth gin.HandlerFunc
	rateLimit   gin.HandlerFunc

	authHandler      *handler.AuthHandler
	planHandler      *handler.PlanHandler
	jokeHandler      *handler.JokeHandler
	analyticsHandler *handler.AnalyticsHandler

	proxies    map[string]*proxy.Proxy
	httpServer *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	users := repository.NewUserRepository(postgres)
	plans := repository.NewPlanRepository(postgres)
	subscriptions := repository.NewSubscriptionRepository(postgres)
	requestLogs := repository.NewRequestLogRepository(postgres)

	bucketStore := ratelimit.NewRedisBucketStore(redis)
	resolver := ratelimit.NewSubscriptionResolver(subscriptions)
	limiter := ratelimit.NewLimiter(bucketStore, resolver)

	authService := service.NewAuthService(postgres, users, plans, subscriptions, cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	planService := service.NewPlanService(postgres, plans, subscriptions, limiter)
	analyticsService := service.NewAnalyticsService(requestLogs)

	recorder := middleware.NewRequestRecorder(requestLogs, 1000)

	s := &Server{
		router:           router,
		config:           cfg,
		redis:            redis,
		postgres:         postgres,
		limiter:          limiter,
		recorder:         recorder,
		requireAuth:      middleware.RequireAuth(authService),
		rateLimit:        middleware.RateLimit(limiter),
		authHandler:      handler.NewAuthHandler(authService),
		planHandler:      handler.NewPlanHandler(planService),
		jokeHandler:      handler.NewJokeHandler(),
		analyticsHandler: handler.NewAnalyticsHandler(analyticsService),
		proxies:          make(map[string]*proxy.Proxy),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(s.recorder.Middleware())
}

func (s *Server) setupRoutes() {
	for _, policy := range s.routes() {
		s.register(policy)
	}

	s.setupProxyRoutes()
}

// Upstream services sit behind the full chain: their consumers are
// tenants, so every proxied call is authenticated and metered.
func (s *Server) setupProxyRoutes() {
	for _, svc := range s.config.Services {
		p, err := proxy.New(svc.Targets)
		if err != nil {
			log.Printf("Failed to create proxy for %s: %v", svc.Path, err)
			continue
		}

		s.proxies[svc.Path] = p

		policy := RoutePolicy{
			Path:         svc.Path + "/*proxyPath",
			RequiresAuth: true,
			RateLimited:  true,
			Handler:      p.Handle,
		}
		s.registerAny(policy)

		log.Printf("Registered proxy route %s -> %v", svc.Path, svc.Targets)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	upstreams := make(map[string]interface{}, len(s.proxies))
	for path, p := range s.proxies {
		upstreams[path] = p.BreakerStates()
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
		"upstreams": upstreams,
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.recorder.Stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
