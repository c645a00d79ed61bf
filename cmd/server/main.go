package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rover/credit-manager/internal/config"
	"github.com/rover/credit-manager/internal/credit"
	"github.com/rover/credit-manager/internal/metrics"
	"github.com/rover/credit-manager/internal/oracle"
	"github.com/rover/credit-manager/internal/reserve"
	"github.com/rover/credit-manager/internal/store"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "credit-manager",
		Short:         "Credit account ledger and borrow executor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file (settings also read from CREDIT_* env)")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("database_url is required to migrate")
			}
			pool, err := pgxpool.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer pool.Close()
			if err := store.NewPostgresStore(pool).Migrate(cmd.Context()); err != nil {
				return err
			}
			slog.Info("schema migrated")
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("credit-manager failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	v, err := config.New(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	// --- Initialize store ---
	var st store.Store
	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("invalid redis_url: %w", err)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("database_url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Red bank and prices ---
	redBank := reserve.NewPool()
	for _, c := range cfg.Liquidity {
		if err := redBank.Fund(c.Denom, c.Amount); err != nil {
			return fmt.Errorf("fund red bank %s: %w", c.Denom, err)
		}
	}
	prices, err := oracle.NewStaticFeed(cfg.Prices)
	if err != nil {
		return fmt.Errorf("seed prices: %w", err)
	}

	// --- WebSocket hub ---
	wsHub := credit.NewWSHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go wsHub.Run(hubCtx)

	// --- Credit service ---
	svc := credit.NewService(st, redBank, prices, wsHub)
	if err := svc.Bootstrap(ctx, cfg.AdminConfig()); err != nil {
		return fmt.Errorf("bootstrap config: %w", err)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"credit-manager","ws_clients":%d}`, wsHub.Clients())
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", wsHub.HandleWS)
		credit.NewHandler(svc).Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("credit-manager listening", "port", cfg.Port, "owner", cfg.Owner)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down credit-manager...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	slog.Info("credit-manager stopped")
	return nil
}
