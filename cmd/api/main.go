package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/Richiestixx/SiteRightApp/internal/app/migrate"
	httpx "github.com/Richiestixx/SiteRightApp/internal/http"
	"github.com/Richiestixx/SiteRightApp/internal/live"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
	"github.com/Richiestixx/SiteRightApp/internal/repository/memory"
	"github.com/Richiestixx/SiteRightApp/internal/repository/postgres"
	"github.com/Richiestixx/SiteRightApp/internal/repository/sqlite"
	"github.com/Richiestixx/SiteRightApp/internal/service/entry"
	"github.com/Richiestixx/SiteRightApp/internal/service/project"
	"github.com/Richiestixx/SiteRightApp/internal/service/session"
	"github.com/Richiestixx/SiteRightApp/internal/service/subscription"
	"github.com/Richiestixx/SiteRightApp/pkg/config"
	"github.com/Richiestixx/SiteRightApp/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type store interface {
	repository.UserRepository
	repository.ProjectRepository
	repository.LogEntryRepository
}

func main() {
	log := logger.New("api", slog.LevelInfo)
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn("failed to load .env", "error", err)
	}
	cfg := config.LoadAPIConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.APIConfig, log *slog.Logger) error {
	var (
		repo     store
		pool     *pgxpool.Pool
		dbHealth func(context.Context) error
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Warn("using in-memory store, data is lost on restart")
		repo = memory.New()
	case config.StoreBackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer db.Close()
		repo = db
		dbHealth = db.Ping
	case config.StoreBackendPostgres, "":
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		runner, err := migrate.New(pool, cfg.DatabaseURL, log)
		if err != nil {
			return fmt.Errorf("configure migrations: %w", err)
		}
		if err := runner.Ping(ctx); err != nil {
			return fmt.Errorf("database ping: %w", err)
		}
		if err := runner.Ensure(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		repo = postgres.New(pool)
		dbHealth = pool.Ping
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	feed, closeFeed, err := newFeed(cfg, pool, log)
	if err != nil {
		return err
	}
	defer closeFeed()

	hub := live.NewHub()
	defer hub.Close()

	subs := subscription.New(repo, repo, hub, feed, log)
	sessionSvc := session.New(repo, log, cfg)
	projectSvc := project.New(repo, subs, log)
	entrySvc := entry.New(repo, subs, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, sessionSvc, projectSvc, entrySvc, subs, limiter, cfg.SSEHeartbeat, dbHealth)
	defer router.Close()
	if err := router.TrustProxies(cfg.TrustedProxies); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("live feed listening", "backend", cfg.LiveBackend)
		if err := subs.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("live feed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreBackend)
		return serve(gctx, srv, ln, log)
	})
	return g.Wait()
}

// serve runs srv on ln until ctx ends. Request contexts derive from ctx, so
// open streams end as soon as shutdown starts.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, log *slog.Logger) error {
	srv.BaseContext = func(net.Listener) context.Context { return ctx }
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	<-errCh
	log.Info("api server stopped")
	return nil
}

func newFeed(cfg config.APIConfig, pool *pgxpool.Pool, log *slog.Logger) (live.Feed, func(), error) {
	switch cfg.LiveBackend {
	case config.LiveBackendLocal, "":
		return live.NewLocalFeed(), func() {}, nil
	case config.LiveBackendPostgres:
		if pool == nil {
			return nil, nil, errors.New("postgres live feed requires the postgres store backend")
		}
		return postgres.NewFeed(pool, cfg.LiveChannel, log), func() {}, nil
	case config.LiveBackendRedis:
		feed, err := live.NewRedisFeed(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LiveChannel, log)
		if err != nil {
			return nil, nil, fmt.Errorf("redis live feed: %w", err)
		}
		return feed, feed.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown live backend %q", cfg.LiveBackend)
	}
}
