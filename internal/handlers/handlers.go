package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"krishimitra/api/internal/config"
	"krishimitra/api/internal/middleware"
	"krishimitra/api/internal/ratelimit"
	"krishimitra/api/internal/service"
)

// HealthCheck probes one dependency. A nil Probe reports the dependency
// as disabled.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	limiter     *ratelimit.Limiter
	checks      []HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, auth *service.AuthService, limiter *ratelimit.Limiter, checks ...HealthCheck) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: auth,
		limiter:     limiter,
		checks:      checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	auth.GET("/health", h.Health)

	public := auth.Group("",
		middleware.RateLimit(h.limiter, ratelimit.ClassAuth, h.log),
		middleware.Sanitize(),
	)
	public.POST("/signup", h.Signup)
	public.POST("/login", h.Login)

	protected := auth.Group("",
		middleware.RateLimit(h.limiter, ratelimit.ClassGeneral, h.log),
		middleware.Auth(h.authService, h.log),
	)
	protected.GET("/profile", h.Profile)
	protected.POST("/refresh-token", h.Refresh)
	protected.POST("/logout", h.Logout)
}
