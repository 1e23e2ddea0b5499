package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appointmentHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/appointment"
	doctorHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/doctor"
	"github.com/jwalitptl/doctorconnect-api/internal/handler/health"
	"github.com/jwalitptl/doctorconnect-api/internal/handler/prometheus"
	reviewHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/review"
	"github.com/jwalitptl/doctorconnect-api/internal/middleware"
	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

type Handlers struct {
	Appointments *appointmentHandler.Handler
	Reviews      *reviewHandler.Handler
	Doctors      *doctorHandler.Handler
	Health       *health.Handler
	Metrics      *prometheus.Handler
}

type RouterConfig struct {
	// RequestTimeout falls back to the middleware default when zero.
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// RateLimit of zero disables per-client limiting.
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	limiter  *middleware.RateLimiter
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.ErrorHandler(),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	timeout := middleware.DefaultTimeoutConfig()
	if config.RequestTimeout > 0 {
		timeout.Duration = config.RequestTimeout
	}
	engine.Use(middleware.Timeout(timeout))
	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodyBytes))
	}

	if config.RateLimit > 0 {
		r.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
	}

	return r
}

func (r *Router) Setup() {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Public routes
	public := api.Group("")
	r.limit(public)
	r.handlers.Doctors.RegisterRoutes(public)

	// Protected routes, limited per principal
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.limit(protected)
	r.handlers.Appointments.RegisterRoutes(protected, middleware.RequireRole(model.RolePatient))
	r.handlers.Reviews.RegisterRoutes(protected)
}

func (r *Router) limit(rg *gin.RouterGroup) {
	if r.limiter != nil {
		rg.Use(r.limiter.RateLimit())
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
