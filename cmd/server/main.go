package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/gophgate/internal/config"
	"github.com/iudanet/gophgate/internal/logger"
	"github.com/iudanet/gophgate/internal/server"
	"github.com/iudanet/gophgate/internal/server/credentials"
	"github.com/iudanet/gophgate/internal/server/handlers"
	"github.com/iudanet/gophgate/internal/server/ledger"
	"github.com/iudanet/gophgate/internal/server/metrics"
	"github.com/iudanet/gophgate/internal/server/session"
	"github.com/iudanet/gophgate/internal/server/signer"
	"github.com/iudanet/gophgate/internal/server/storage"
	"github.com/iudanet/gophgate/internal/server/storage/postgres"
	"github.com/iudanet/gophgate/internal/server/storage/redisstore"
	"github.com/iudanet/gophgate/internal/server/storage/sqlite"
	"github.com/iudanet/gophgate/internal/server/sweeper"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// sqlStorage общий интерфейс sqlite и postgres хранилищ
type sqlStorage interface {
	storage.UserStorage
	storage.TokenStorage
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.InsecureSecret {
		log.Warn("JWT secret is not set, using development secret. Do not use in production")
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close storage", slog.Any("error", err))
		}
	}()
	log.Info("Storage ready", slog.String("driver", cfg.Storage))

	pingers := []handlers.Pinger{store}

	var tokens storage.TokenStorage = store
	if cfg.Ledger == config.LedgerRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rs := redisstore.New(client, redisstore.WithPrefix(cfg.RedisPrefix))
		defer func() {
			_ = rs.Close()
		}()
		if err := rs.Ping(ctx); err != nil {
			return err
		}
		tokens = rs
		pingers = append(pingers, rs)
		log.Info("Token ledger on redis", slog.String("addr", cfg.RedisAddr))
	}

	m := metrics.New()

	tokenLedger := ledger.New(tokens, ledger.Config{
		TemporaryTTL: cfg.TempTTL,
		RefreshTTL:   cfg.RefreshTTL,
	}, log)
	creds := credentials.New(store, cfg.BcryptCost)
	orch := session.New(
		signer.New(cfg.JWTSecret, cfg.AccessTTL),
		tokenLedger,
		creds,
		log,
		session.WithRecorder(m),
	)

	opts := server.Options{
		Addr:       cfg.Addr,
		Version:    Version,
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
	}
	if cfg.MetricsEnabled {
		opts.Metrics = m
	}
	srv := server.New(opts, log, orch, pingers...)

	// sweeper живет, пока работает сервер
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.New(tokenLedger, cfg.SweepInterval, log, sweeper.WithCounter(m)).Run(sweepCtx)
	}()

	err = srv.Run(ctx)
	cancelSweep()
	wg.Wait()
	return err
}

func openStorage(ctx context.Context, cfg *config.Config) (sqlStorage, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	default:
		return sqlite.New(ctx, cfg.DBPath)
	}
}

func printVersion() {
	fmt.Printf("gophgate server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
