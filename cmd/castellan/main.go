package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/castellan-io/castellan/internal/activity"
	"github.com/castellan-io/castellan/internal/app"
	"github.com/castellan-io/castellan/internal/auth"
	"github.com/castellan-io/castellan/internal/observability"
	"github.com/castellan-io/castellan/internal/platform/cache"
	"github.com/castellan-io/castellan/internal/platform/db"
	"github.com/castellan-io/castellan/internal/posts"
	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/roles"
	"github.com/castellan-io/castellan/internal/shared"
	"github.com/castellan-io/castellan/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The catalog degrades to direct store reads when Redis is unavailable.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, permission cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditor := shared.NewPGAuditor(pool)
	hasher := users.PasswordHasher{Cost: cfg.BcryptCost}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	roleRepo := roles.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	postRepo := posts.NewRepository(pool)
	activityRepo := activity.NewRepository(pool)

	catalog := rbac.NewCatalog(roleRepo, redisClient, cfg.CacheTTL)
	rbacMiddleware := rbac.Middleware{Catalog: catalog, Logger: logger}

	authService := auth.NewService(userRepo, roleRepo, auditor, hasher, tokens)
	roleService := roles.NewService(roleRepo, auditor, catalog)
	userService := users.NewService(userRepo, roleRepo, auditor, hasher)
	postService := posts.NewService(postRepo, userRepo, auditor)
	activityService := activity.NewService(activityRepo)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		TokenManager:       tokens,
		AuthHandler:        auth.NewHandler(logger, authService),
		UsersHandler:       users.NewHandler(logger, userService, rbacMiddleware),
		RolesHandler:       roles.NewHandler(logger, roleService, rbacMiddleware),
		PostsHandler:       posts.NewHandler(logger, postService, rbacMiddleware),
		ActivityHandler:    activity.NewHandler(logger, activityService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(rbacMiddleware),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
