// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"authflow/config"
	"authflow/internal/delivery/api/middleware"
	"authflow/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	OAuthHandler     *handler.OAuthHandler
	EmailAuthHandler *handler.EmailAuthHandler
	SessionHandler   *handler.SessionHandler
	AuthMiddleware   *middleware.AuthMiddleware
	Registry         *prometheus.Registry
	Config           *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	oauthHandler     *handler.OAuthHandler
	emailAuthHandler *handler.EmailAuthHandler
	sessionHandler   *handler.SessionHandler
	authMiddleware   *middleware.AuthMiddleware
	registry         *prometheus.Registry
	config           *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		oauthHandler:     params.OAuthHandler,
		emailAuthHandler: params.EmailAuthHandler,
		sessionHandler:   params.SessionHandler,
		authMiddleware:   params.AuthMiddleware,
		registry:         params.Registry,
		config:           params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	authGroup := e.Group("/auth")
	{
		authGroup.POST("/email", r.emailAuthHandler.Dispatch)
		authGroup.POST("/session/finalize", r.sessionHandler.Finalize)
	}

	oauthGroup := authGroup.Group("/oauth")
	{
		oauthGroup.POST("/authorize", r.oauthHandler.Authorize)
		oauthGroup.GET("/callback", r.oauthHandler.Callback)
		oauthGroup.GET("/verify", r.oauthHandler.Verify)
	}

	// Routes that require a session credential
	sessionGroup := authGroup.Group("")
	sessionGroup.Use(r.authMiddleware.Authenticate)
	{
		sessionGroup.GET("/session", r.sessionHandler.Current)
		sessionGroup.POST("/logout", r.sessionHandler.Logout)
	}
}

// RegisterMetricsRoute exposes the Prometheus registry when enabled.
func (r *router) RegisterMetricsRoute(e *echo.Echo) {
	if !r.config.Metrics.Enabled || r.registry == nil {
		return
	}

	e.GET(r.config.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))
}
