package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gridkit/internal/catalog"
	"github.com/JonMunkholm/gridkit/internal/config"
	"github.com/JonMunkholm/gridkit/internal/grid"
	"github.com/JonMunkholm/gridkit/internal/logging"
	"github.com/JonMunkholm/gridkit/internal/source"
	"github.com/JonMunkholm/gridkit/internal/storage"
	"github.com/JonMunkholm/gridkit/internal/web"
)

// seedRows is how many demo products a fresh backend starts with.
const seedRows = 120

// snapshotKey is the blob the persisted backend reads and writes.
const snapshotKey = "products.json"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	flush := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		SeqURL: cfg.Logging.SeqURL,
	})
	defer flush()

	slog.Info("configuration loaded", "config", cfg)

	ctx := context.Background()
	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		slog.Error("failed to open data source", "backend", cfg.Grid.Backend, "error", err)
		os.Exit(1)
	}
	defer closeSource()

	catalog.RegisterProducts(grid.Default(), src)
	slog.Info("grids registered", "keys", grid.Keys())

	server := web.NewServer(grid.Default(), cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		return
	}
	slog.Info("server stopped")
}

// openSource builds the products data source for the configured backend.
// The returned cleanup function is never nil.
func openSource(ctx context.Context, cfg *config.Config) (grid.DataSource, func(), error) {
	noop := func() {}
	schema := catalog.ProductSchema()

	switch strings.ToLower(cfg.Grid.Backend) {
	case config.BackendMemory:
		return source.NewMemory(schema, catalog.SeedProducts(seedRows)), noop, nil

	case config.BackendPersisted:
		store, err := storage.Open(ctx, cfg.Storage.StoreConfig())
		if err != nil {
			return nil, noop, fmt.Errorf("open storage: %w", err)
		}
		src, err := source.OpenPersisted(ctx, store, snapshotKey, schema, catalog.SeedProducts(seedRows))
		if err != nil {
			return nil, noop, err
		}
		slog.Info("snapshot loaded", "mode", cfg.Storage.Mode, "key", src.Key(), "rows", src.Len())
		return src, noop, nil

	case config.BackendPostgres:
		pool, err := connect(ctx, &cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		src, err := catalog.EnsureProducts(ctx, pool, cfg.Grid.Table, catalog.SeedProducts(seedRows))
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return src, pool.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown backend %q", cfg.Grid.Backend)
}

// connect opens and verifies the connection pool.
func connect(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
