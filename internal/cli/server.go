package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizhub-service/internal/app"
	"quizhub-service/internal/auth"
	"quizhub-service/internal/config"
	"quizhub-service/internal/docstore"
	"quizhub-service/internal/infra/memory"
	pgstore "quizhub-service/internal/infra/postgres"
	redisstore "quizhub-service/internal/infra/redis"
	"quizhub-service/internal/infra/sqlite"
	"quizhub-service/internal/logger"
	transport "quizhub-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured")
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	rankingTTL := config.Duration(cfg.Ranking.TTL, 30*time.Second)
	remote, rankingCache, closeRemote, err := openRemote(ctx, cfg, rankingTTL, log)
	if err != nil {
		return err
	}
	defer closeRemote()

	cache, closeCache, err := openUserCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	store := app.NewQuizStore(remote, memory.NewDocumentStore(), log.Named("store"))
	stats := app.NewStatsService(store, cache, log.Named("stats"))
	ranking := app.NewRankingService(store, rankingCache, cfg.Ranking.Limit)
	tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, config.Duration(cfg.Auth.TTL, 24*time.Hour))

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.Deps{
			Quizzes: store,
			Stats:   stats,
			Ranking: ranking,
			Tokens:  tokens,
			Logger:  log.Named("http"),
		}),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz service", zap.String("port", finalPort), zap.String("backend", cfg.Remote.Backend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openRemote connects the configured remote document store and picks the
// ranking cache that lives next to it.
func openRemote(ctx context.Context, cfg config.Config, rankingTTL time.Duration, log *zap.Logger) (docstore.Store, app.RankingCache, func(), error) {
	switch cfg.Remote.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory remote store; data is lost on restart")
		return memory.NewDocumentStore(), memory.NewRankingCache(rankingTTL), func() {}, nil

	case config.BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, nil, nil, fmt.Errorf("redis addr not configured")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// Reads fall back to the offline tier, so an unreachable remote is not fatal.
			log.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		closeClient := func() { _ = client.Close() }
		return redisstore.NewDocumentStore(client), redisstore.NewRankingCache(client, rankingTTL), closeClient, nil

	case config.BackendPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		return pgstore.NewDocumentStore(pool), memory.NewRankingCache(rankingTTL), pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
}

// openUserCache opens the sqlite cache, or an in-memory one when no path is set.
func openUserCache(cfg config.Config) (app.UserCache, func(), error) {
	if cfg.Local.Path == "" {
		return memory.NewUserCache(), func() {}, nil
	}
	cache, err := sqlite.NewUserCache(cfg.Local.Path)
	if err != nil {
		return nil, nil, err
	}
	return cache, func() { _ = cache.Close() }, nil
}
