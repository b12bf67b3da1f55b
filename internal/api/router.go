package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/auth-service/docs"
	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/api/middleware"
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/service"
)

// Deps is everything the router needs from main.
type Deps struct {
	AuthService ports.AuthService
	Decoder     ports.TokenDecoder
	Evaluator   ports.AuthorizationEvaluator
	Health      *handler.HealthDependenciesHandler
	Log         zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddleware("auth"))

	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes (public) ---
	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Log)
	auth := e.Group("/api/auth")
	auth.POST("/register", authHandler.Register)
	auth.GET("/registrationConfirmation", authHandler.ConfirmRegistration)
	auth.GET("/token/resend", authHandler.ResendRegistrationToken)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/password/resetlink", authHandler.ResetLink)
	auth.POST("/password/reset", authHandler.ResetPassword)

	// --- User routes (bearer token + role check per operation) ---
	userHandler := handler.NewUserHandler(deps.AuthService)
	user := e.Group("/api/user", middleware.Auth(deps.Decoder))
	user.POST("/password/update", userHandler.UpdatePassword,
		middleware.Authorize(deps.Evaluator, domain.OpUpdatePassword))
	user.POST("/logout", userHandler.Logout,
		middleware.Authorize(deps.Evaluator, domain.OpLogout))
	user.GET("/me", userHandler.Me,
		middleware.Authorize(deps.Evaluator, domain.OpGetUser, service.CurrentUserAttr))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	e.GET("/health", healthHandler.Liveness) // liveness  – is the process alive?
	if deps.Health != nil {
		e.GET("/health/ready", deps.Health.Readiness) // readiness – are dependencies up?
	}

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
