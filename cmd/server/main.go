package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"priceguard/internal/alert"
	"priceguard/internal/cache"
	"priceguard/internal/config"
	"priceguard/internal/database"
	"priceguard/internal/handlers"
	"priceguard/internal/logger"
	"priceguard/internal/notify"
	"priceguard/internal/pricecache"
	"priceguard/internal/prefs"
	"priceguard/internal/tracing"
	"priceguard/internal/watchlist"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	logger.InitLogger(false)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.DebugLogging {
		logger.InitLogger(true)
	}

	redisCache, err := cache.New(cfg.RedisAddr)
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	db, err := database.Open(cfg.PostgresURL)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	shutdown, err := tracing.InitTracer(cfg.OTLPEndpoint, "priceguard-api")
	if err != nil {
		logger.Log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer", zap.Error(err))
		}
	}()

	prices := pricecache.New(db, cfg.StalenessWindow)
	watches := watchlist.New(db, prices)
	alertLog := alert.NewLog(db)
	preferences := prefs.New(db)

	var mailer notify.Mailer
	if cfg.ResendAPIKey != "" {
		mailer = notify.NewResendMailer(cfg.ResendAPIKey, cfg.ResendFromEmail)
	}
	directory := notify.NewHTTPDirectory(cfg.AuthBaseURL, cfg.AuthServiceKey)

	var emailDispatcher *notify.EmailDispatcher
	if mailer != nil {
		emailDispatcher = notify.NewEmailDispatcher(preferences, directory, alertLog, mailer, cfg.DashboardURL)
	}

	srv := &handlers.Server{
		DB:        db,
		Cache:     redisCache,
		Prices:    prices,
		Watchlist: watches,
		Alerts:    alertLog,
		Prefs:     preferences,
		Notify:    emailDispatcher,
		Instance:  cfg.Instance,
	}
	handlers.ServiceKey = cfg.AuthServiceKey

	if err := srv.InitSSE(ctx); err != nil {
		logger.Log.Fatal("Failed to initialize SSE", zap.Error(err))
	}

	mux := http.NewServeMux()
	srv.Routes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	handler := handlers.RequestLogger(srv.RateLimit(cfg.RateLimitPerMin, mux))

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("HTTP server shutdown failed", zap.Error(err))
		}
	}()

	logger.Log.Info("API server starting",
		zap.String("port", cfg.HTTPPort),
		zap.String("instance", cfg.Instance),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal("HTTP server failed", zap.Error(err))
	}
	logger.Log.Info("API server stopped")
}
