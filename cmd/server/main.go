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
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/assessx/internal/catalog"
	"github.com/JonMunkholm/assessx/internal/config"
	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/importer"
	"github.com/JonMunkholm/assessx/internal/logging"
	"github.com/JonMunkholm/assessx/internal/requests"
	"github.com/JonMunkholm/assessx/internal/web"
	"github.com/JonMunkholm/assessx/internal/wizard"
)

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, closeCatalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	lookup, err := loadLookup(cfg.Import.HeaderAliasesFile)
	if err != nil {
		return err
	}

	// Name checks and creates share one bound on catalog requests in flight.
	limiter := requests.NewLimiter(cfg.Import.MaxConcurrentRequests, cfg.Import.MaxWaitTime)
	checks := requests.NewStore[[]catalog.Record](limiter)
	creates := requests.NewStore[catalog.Record](limiter)

	imp := importer.New(cat, creates, cfg.Import.PollInterval, logger.With("component", "importer"))
	wizards := wizard.NewManager(cat, checks, imp, wizard.Options{
		PollInterval: cfg.Import.PollInterval,
		Debounce:     cfg.Import.NameCheckDebounce,
		SessionTTL:   cfg.Import.SessionTTL,
		Lookup:       lookup,
	}, logger.With("component", "wizard"))

	server := web.NewServer(cfg, cat, wizards, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return wizards.Run(gctx)
	})

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}

		if st := limiter.Status(); st.Active > 0 {
			logger.Info("waiting for catalog requests to complete", "active", st.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("catalog requests did not complete in time", "error", err)
			}
		}
		return nil
	})

	err = g.Wait()
	checks.Close()
	creates.Close()
	logger.Info("server stopped")
	return err
}

// openCatalog connects to Postgres when a database URL is configured and
// falls back to the in-memory catalog otherwise.
func openCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Catalog, func(), error) {
	if !cfg.Database.UsesDatabase() {
		logger.Warn("DATABASE_URL not set, templates are kept in memory")
		return catalog.NewMemoryCatalog(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	pg := catalog.NewPostgresCatalog(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pg, pool.Close, nil
}

func loadLookup(path string) (exchange.Lookup, error) {
	if path == "" {
		return exchange.DefaultLookup, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open header aliases: %w", err)
	}
	defer f.Close()
	return exchange.LoadLookup(f)
}
