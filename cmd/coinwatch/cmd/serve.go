package cmd

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

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"coinwatch/internal/api/handlers"
	mw "coinwatch/internal/api/middleware"
	"coinwatch/internal/config"
	"coinwatch/internal/market"
	"coinwatch/internal/monitor"
	"coinwatch/internal/notify"
	"coinwatch/internal/store"
	"coinwatch/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and monitoring scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx := context.Background()

	st, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	mkt := buildMarketClient(cfg, log)
	notifier := buildNotifier(cfg, log)

	mon := monitor.NewMonitor(st, mkt, notifier,
		monitor.WithLogger(log),
		monitor.WithChains(cfg.Monitor.Chains),
		monitor.WithSurgeThreshold(cfg.Monitor.SurgeThreshold),
		monitor.WithSurgeWindow(cfg.Monitor.SurgeWindow),
		monitor.WithAdminEmail(cfg.Monitor.AdminEmail),
		monitor.WithSwapAssets(cfg.Swap.SourceAsset, cfg.Swap.TargetAsset),
		monitor.WithFeeRate(cfg.Swap.FeeRate),
	)

	sched, err := monitor.NewScheduler(mon, cfg.Monitor.Schedule, log)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}
	sched.Start()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(mw.Recovery(log))
	e.Use(mw.RequestLog(log))
	e.Use(mw.Metrics())

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	health := handlers.NewHealthHandler(st)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	prices := handlers.NewPricesHandler(mon)
	e.GET("/prices/hourly", prices.Hourly)
	e.POST("/prices/alert", prices.SetAlert)
	e.GET("/prices/swap-rate/:ethAmount", prices.SwapRate)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr, "chains", cfg.Monitor.Chains)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	// Wait for a running tick to finish.
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("scheduler did not stop before timeout")
	}

	log.Info("stopped")
	return nil
}

func buildStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory store, data will not survive restarts")
		return store.NewMemoryStore(), func() {}, nil
	}

	pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	return pg, pg.Close, nil
}

func buildMarketClient(cfg *config.Config, log *slog.Logger) market.Client {
	limiter := market.NewRateLimiter(
		cfg.Market.RateLimit.PerSecond,
		cfg.Market.RateLimit.Burst,
		cfg.Market.RateLimit.DailyLimit,
	)

	return market.NewMoralisClient(cfg.Market.APIKey,
		market.WithBaseURL(cfg.Market.BaseURL),
		market.WithHTTPClient(&http.Client{Timeout: cfg.Market.Timeout}),
		market.WithRateLimiter(limiter),
		market.WithLogger(log),
	)
}

func buildNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	switch cfg.Notifications.Backend {
	case "smtp":
		s := cfg.Notifications.SMTP
		return notify.NewSMTPNotifier(s.Host, s.Port, s.Username, s.Password, s.From)
	case "webhook":
		w := cfg.Notifications.Webhook
		return notify.NewWebhookNotifier(w.URL, notify.WithHeaders(w.Headers))
	default:
		return notify.NewNoOpNotifier(log)
	}
}
