package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"priceguard/internal/alert"
	"priceguard/internal/cache"
	"priceguard/internal/config"
	"priceguard/internal/database"
	"priceguard/internal/ingestor"
	"priceguard/internal/logger"
	"priceguard/internal/notify"
	"priceguard/internal/pricecache"
	"priceguard/internal/prefs"
	"priceguard/internal/tracing"
	"priceguard/internal/upstream"
	"priceguard/internal/watchlist"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	once := flag.Bool("once", false, "Run a single refresh cycle and exit")
	metricsPort := flag.String("metrics-port", "9091", "Port for the metrics endpoint")
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

	shutdown, err := tracing.InitTracer(cfg.OTLPEndpoint, "priceguard-refresher")
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
	directory := notify.NewHTTPDirectory(cfg.AuthBaseURL, cfg.AuthServiceKey)

	var mailer notify.Mailer
	if cfg.ResendAPIKey != "" {
		mailer = notify.NewResendMailer(cfg.ResendAPIKey, cfg.ResendFromEmail)
	} else {
		logger.Log.Warn("No Resend API key configured, email notifications disabled")
	}

	dispatchers := []alert.Dispatcher{notify.NewStreamDispatcher(redisCache)}
	if mailer != nil {
		dispatchers = append(dispatchers,
			notify.NewEmailDispatcher(preferences, directory, alertLog, mailer, cfg.DashboardURL))
	}

	evaluator := alert.NewEvaluator(db, watches, alertLog, dispatchers...)
	prices.OnChange(watches.SyncDisplayFields, evaluator.Evaluate)

	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, cfg.TopAssetLimit)
	in := ingestor.New(client, prices, cfg.RefreshInterval, cfg.CycleDeadline)

	if *once {
		if err := in.RunCycle(ctx); err != nil {
			logger.Log.Fatal("Refresh cycle failed", zap.Error(err))
		}
		return
	}

	// Daily summary emails run on the cron schedule, default 09:00 UTC.
	if mailer != nil {
		summaries := notify.NewSummarySender(preferences, watches, prices, directory, mailer, cfg.DashboardURL)
		scheduler := cron.New(cron.WithLocation(time.UTC))
		if _, err := scheduler.AddFunc(cfg.SummarySchedule, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			summaries.SendAll(sctx)
		}); err != nil {
			logger.Log.Fatal("Invalid summary schedule", zap.String("schedule", cfg.SummarySchedule), zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+*metricsPort, metricsMux); err != nil {
			logger.Log.Error("Metrics endpoint failed", zap.Error(err))
		}
	}()

	in.Run(ctx)
}
