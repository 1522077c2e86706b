package ingestor

import (
	"context"
	"errors"
	"time"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Completed ingestion cycles by outcome",
		},
		[]string{"status"},
	)
	recordsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_records_skipped_total",
			Help: "Malformed upstream records skipped",
		},
	)
	assetsCommittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_assets_committed_total",
			Help: "Snapshots accepted into the price cache",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(recordsSkippedTotal)
	prometheus.MustRegister(assetsCommittedTotal)
}

// Fetcher pulls the ranked asset list from upstream.
type Fetcher interface {
	FetchTopAssets(ctx context.Context) ([]models.AssetSnapshot, int, error)
}

// Upserter absorbs refreshed snapshots.
type Upserter interface {
	Upsert(ctx context.Context, snap models.AssetSnapshot) error
}

// Ingestor polls upstream on a fixed interval and feeds the price cache.
// A cycle that cannot complete before its deadline is abandoned; the
// cache keeps serving its prior (possibly stale) state.
type Ingestor struct {
	fetcher  Fetcher
	cache    Upserter
	interval time.Duration
	deadline time.Duration
}

func New(fetcher Fetcher, cache Upserter, interval, deadline time.Duration) *Ingestor {
	return &Ingestor{
		fetcher:  fetcher,
		cache:    cache,
		interval: interval,
		deadline: deadline,
	}
}

// Run executes one cycle immediately, then on every interval tick until
// the context is cancelled.
func (in *Ingestor) Run(ctx context.Context) {
	logger.Log.Info("Ingestor started",
		zap.Duration("interval", in.interval),
		zap.Duration("cycle_deadline", in.deadline),
	)

	in.RunCycle(ctx)

	ticker := time.NewTicker(in.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			in.RunCycle(ctx)
		case <-ctx.Done():
			logger.Log.Info("Ingestor stopped")
			return
		}
	}
}

// RunCycle performs one poll: fetch with bounded backoff under the cycle
// deadline, then upsert each parsed snapshot. Partial success is fine;
// assets missing from the response keep their previous snapshot.
func (in *Ingestor) RunCycle(ctx context.Context) error {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, in.deadline)
	defer cancel()

	var skipped int
	fetch := func() ([]models.AssetSnapshot, error) {
		snaps, skip, err := in.fetcher.FetchTopAssets(cctx)
		skipped = skip
		if err != nil {
			if !retryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return snaps, nil
	}

	snapshots, err := backoff.Retry(cctx, fetch,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(in.deadline),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Log.Warn("Upstream fetch failed, retrying",
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		cyclesTotal.WithLabelValues("failed").Inc()
		logger.Log.Error("Ingestion cycle abandoned, cache keeps prior state",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	if skipped > 0 {
		recordsSkippedTotal.Add(float64(skipped))
	}

	committed, dropped := 0, 0
	for _, snap := range snapshots {
		switch err := in.cache.Upsert(cctx, snap); {
		case err == nil:
			committed++
		case errors.Is(err, models.ErrStaleWrite):
			dropped++
		default:
			dropped++
			logger.Log.Error("Snapshot upsert failed",
				zap.Int64("asset_id", snap.AssetID),
				zap.Error(err),
			)
		}
	}
	assetsCommittedTotal.Add(float64(committed))
	cyclesTotal.WithLabelValues("ok").Inc()

	logger.Log.Info("Ingestion cycle complete",
		zap.Int("committed", committed),
		zap.Int("dropped", dropped),
		zap.Int("malformed", skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, models.ErrNoValidRecords) {
		return false
	}
	var status upstreamStatus
	if errors.As(err, &status) {
		return status.Temporary()
	}
	// Network-level failures are worth retrying until the deadline.
	return true
}

// upstreamStatus matches upstream.StatusError without importing the
// package, keeping the ingestor testable against any fetcher.
type upstreamStatus interface {
	error
	Temporary() bool
}
