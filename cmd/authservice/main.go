package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/99minutos/auth-service/internal/api"
	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/service"
	mongodb "github.com/99minutos/auth-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/auth-service/internal/infrastructure/db/postgres"
	redisdb "github.com/99minutos/auth-service/internal/infrastructure/db/redis"
	"github.com/99minutos/auth-service/internal/pkg/config"
	"github.com/99minutos/auth-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "auth-service",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("auth service stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	// --- MongoDB: users, devices and tokens ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	users := mongodb.NewUserRepository(db)
	refreshTokens := mongodb.NewRefreshTokenRepository(db)
	devices := mongodb.NewDeviceRepository(db)
	verifications := mongodb.NewEmailVerificationRepository(db)
	resets := mongodb.NewPasswordResetRepository(db)
	leave := mongodb.NewLeaveAllocationRepository(db)

	if err := mongodb.EnsureIndexes(ctx, users, refreshTokens, devices, verifications, resets, leave); err != nil {
		return err
	}

	// --- Postgres: role catalogue ---
	pg, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
	if err != nil {
		return err
	}
	defer pg.Close()

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, pg); err != nil {
			return err
		}
	}
	roles := postgres.NewRoleRepository(pg)

	// --- Redis: role mapping cache ---
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		PoolSize:  cfg.Redis.PoolSize,
		OpTimeout: cfg.Redis.OpTimeout,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	var roleMappings ports.RoleMappingRepository = roles
	if cfg.RoleCacheEnabled() {
		cache := redisdb.NewRoleCache(rdb, roles, cfg.Redis.RoleCacheTTL, logger.Component("role_cache"))
		// Mappings may have changed with the migrations just applied.
		if err := cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("role cache invalidation failed")
		}
		roleMappings = cache
	}

	// --- Services ---
	codec := service.NewTokenCodec(cfg.Auth.JWTSecret)
	hasher := service.NewBcryptHasher(0)
	refreshService := service.NewRefreshTokenService(refreshTokens, cfg.Auth.RefreshTokenTTL,
		cfg.Auth.RefreshTokenMaxUses, logger.Component("refresh_tokens"))

	authService := service.NewAuthService(service.AuthDeps{
		Users:         users,
		Roles:         roles,
		Hasher:        hasher,
		Authenticator: service.NewPasswordAuthenticator(users, hasher),
		Codec:         codec,
		Devices:       service.NewDeviceService(devices, refreshService, logger.Component("devices")),
		RefreshTokens: refreshService,
		Verifications: service.NewEmailVerificationService(verifications, cfg.Auth.EmailTokenTTL),
		Resets:        service.NewPasswordResetService(resets, cfg.Auth.ResetTokenTTL, logger.Component("password_reset")),
		Listener:      leave,
	}, cfg.Auth.AccessTokenTTL, logger.Component("auth"))

	authorizer := service.NewAuthorizer(codec, roleMappings, logger.Component("authorizer"))

	e := api.NewRouter(api.Deps{
		AuthService: authService,
		Decoder:     codec,
		Evaluator:   authorizer,
		Health:      handler.NewHealthDependenciesHandler(db, rdb, pg),
		Log:         logger.Component("http"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("auth service listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
