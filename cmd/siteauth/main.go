package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/sitelift/siteauth/internal/bootstrap"
	"github.com/sitelift/siteauth/internal/config"
	siteauthhttp "github.com/sitelift/siteauth/internal/http"
	"github.com/sitelift/siteauth/internal/http/handler"
	"github.com/sitelift/siteauth/internal/http/middleware"
	"github.com/sitelift/siteauth/internal/password"
	"github.com/sitelift/siteauth/internal/repository"
	"github.com/sitelift/siteauth/internal/server"
	"github.com/sitelift/siteauth/internal/service"
	"github.com/sitelift/siteauth/internal/site"
	"github.com/sitelift/siteauth/internal/telemetry"
	"github.com/sitelift/siteauth/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflakeNode,
			newPGXPool,
			newRedisClient,
			newSiteUserRepository,
			newSiteRepository,
			newSiteCache,
			site.NewResolver,
			newHasher,
			newCodec,
			service.NewAuthService,
			handler.NewAuthHandler,
			newRateLimiter,
			siteauthhttp.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(
			useTelemetry,
			bootstrap.EnsureSeedSite,
			startHTTPServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
	)
	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}

func newSnowflakeNode() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return node, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping postgres: %w", err)
			}
			logger.Info("postgres connected")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

// newRedisClient returns nil when REDIS_ADDR is unset; the site cache treats
// a nil client as disabled.
func newRedisClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newSiteUserRepository(pool *pgxpool.Pool, cfg config.Config) repository.SiteUserRepository {
	return repository.NewPostgresSiteUserRepo(pool, cfg.StoreTimeout)
}

func newSiteRepository(pool *pgxpool.Pool, cfg config.Config) repository.SiteRepository {
	return repository.NewPostgresSiteRepo(pool, cfg.StoreTimeout)
}

func newSiteCache(client redis.UniversalClient) *site.Cache {
	return site.NewCache(client)
}

func newHasher(cfg config.Config) *password.Hasher {
	return password.NewHasher(int64(cfg.HashConcurrency))
}

func newCodec(cfg config.Config) (*token.Codec, error) {
	return token.NewCodec(cfg.SessionSecret)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func useTelemetry(*telemetry.Provider) {}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			addr := ":" + cfg.HTTPPort
			logger.Info("http server starting", zap.String("addr", addr))
			go func() {
				defer close(done)
				if err := srv.Run(ctx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
