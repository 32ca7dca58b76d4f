// Package api serves the authentication HTTP API.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"authflow/config"
	"authflow/internal/delivery"
	apimiddleware "authflow/internal/delivery/api/middleware"
	"authflow/internal/delivery/api/router"
	"authflow/internal/delivery/api/validator"
	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/delivery/middleware"
	"authflow/internal/domain/lifecycle"
	"authflow/internal/errors"
	"authflow/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/net/http2"
)

type apiServer struct {
	addr   string
	h2     *http2.Server
	logger *slog.Logger
	echo   *echo.Echo
}

// ServerParams holds dependencies for HTTP server, injected by Fx.
type ServerParams struct {
	fx.In

	Lc           fx.Lifecycle
	Cfg          *config.Config
	Logger       *slog.Logger
	Collector    *metrics.Collector
	RouterParams router.RouterParams
}

// NewServer builds the API delivery. The listener is only opened by Serve.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	srv := &apiServer{
		addr:   net.JoinHostPort("0.0.0.0", strconv.Itoa(params.Cfg.HTTP.Port)),
		h2:     &http2.Server{IdleTimeout: params.Cfg.HTTP.Timeouts.IdleTimeout},
		logger: params.Logger,
		echo:   newEcho(params),
	}

	params.Lc.Append(fx.Hook{OnStop: srv.stop})

	return srv, nil
}

// newEcho builds the configured echo instance without binding a port.
func newEcho(params ServerParams) *echo.Echo {
	cfg := params.Cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.HTTP.Timeouts.ReadTimeout
	e.Server.ReadHeaderTimeout = cfg.HTTP.Timeouts.ReadHeaderTimeout
	e.Server.WriteTimeout = cfg.HTTP.Timeouts.WriteTimeout
	e.Server.IdleTimeout = cfg.HTTP.Timeouts.IdleTimeout

	// Order matters: panics are recovered first and every later middleware logs with the
	// request id.
	e.Use(echomiddleware.Recover())
	e.Use(middleware.NewRequestIDMiddleware(params.Logger).Process)
	e.Use(middleware.NewLoggerMiddleware(params.Logger, cfg).Handle)
	if params.Collector != nil {
		e.Use(middleware.NewMetricsMiddleware(params.Collector).Handle)
	}
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:      "0",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "no-referrer",
	}))
	e.Use(corsMiddleware(cfg.HTTP.AllowOrigins))
	e.Use(echomiddleware.BodyLimit(cfg.HTTP.MaxRequestBodySize))

	e.HTTPErrorHandler = apimiddleware.NewErrorMiddleware(params.Logger).HandleHTTPError
	e.Validator = validator.New()

	r := router.NewRouter(params.RouterParams)
	r.RegisterRoutes(e)
	r.RegisterMetricsRoute(e)

	return e
}

// corsMiddleware allows credentialed requests from the configured origins only. Without any
// configured origin every origin is allowed but cookies are not.
func corsMiddleware(origins []string) echo.MiddlewareFunc {
	if len(origins) == 0 {
		return echomiddleware.CORS()
	}

	return echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			deliverycontext.HeaderXRequestID,
		},
		ExposeHeaders: []string{deliverycontext.HeaderXRequestID},
	})
}

func (s *apiServer) Serve(_ context.Context) error {
	s.logger.Info("Starting API HTTP server", slog.String("host_port", s.addr))

	if err := s.echo.StartH2CServer(s.addr, s.h2); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}

	return nil
}

func (s *apiServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down API HTTP server")

	return errors.WithStack(s.echo.Shutdown(shutdownCtx))
}
