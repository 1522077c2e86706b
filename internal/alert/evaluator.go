package alert

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	alertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_triggered_total",
			Help: "Alert events emitted by direction",
		},
		[]string{"direction"},
	)
	evaluatorFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_evaluator_faults_total",
			Help: "Per-entry evaluation failures, skipped without aborting siblings",
		},
	)
)

func init() {
	prometheus.MustRegister(alertsTriggeredTotal)
	prometheus.MustRegister(evaluatorFaultsTotal)
}

var hundred = decimal.NewFromInt(100)

// Entries is the slice of watchlist behavior the evaluator needs: find
// the rows watching an asset, and advance a reference price after a
// crossing.
type Entries interface {
	ListForAsset(ctx context.Context, assetID int64) ([]*models.WatchlistEntry, error)
	ResetReference(ctx context.Context, tx *sql.Tx, userID string, assetID int64, price decimal.Decimal) error
}

// Dispatcher consumes emitted events. Delivery failures never affect
// emission or logging.
type Dispatcher interface {
	DispatchPriceAlert(ctx context.Context, event models.AlertEvent) error
}

// Evaluator decides, for every entry watching a refreshed asset, whether
// the cumulative price drift since the entry's reference price crosses
// its threshold. Crossings are edge-triggered: the reference price resets
// to the triggering price in the same transaction as the event append, so
// the same move never re-alerts on the next poll.
type Evaluator struct {
	db          *sql.DB
	entries     Entries
	log         *Log
	dispatchers []Dispatcher
}

func NewEvaluator(db *sql.DB, entries Entries, log *Log, dispatchers ...Dispatcher) *Evaluator {
	return &Evaluator{db: db, entries: entries, log: log, dispatchers: dispatchers}
}

// Evaluate runs once per accepted snapshot upsert, after display fields
// synced. A fault in one entry is logged and counted, never aborts the
// siblings, and never propagates to the ingestion path.
func (e *Evaluator) Evaluate(ctx context.Context, snap models.AssetSnapshot) {
	entries, err := e.entries.ListForAsset(ctx, snap.AssetID)
	if err != nil {
		evaluatorFaultsTotal.Inc()
		logger.Log.Error("Failed to load watchlist entries for evaluation",
			zap.Int64("asset_id", snap.AssetID),
			zap.Error(err),
		)
		return
	}

	for _, entry := range entries {
		if err := e.evaluateEntry(ctx, snap, entry); err != nil {
			evaluatorFaultsTotal.Inc()
			logger.Log.Error("Entry evaluation failed, skipping",
				zap.String("user_id", entry.UserID),
				zap.Int64("asset_id", entry.AssetID),
				zap.Error(err),
			)
		}
	}
}

func (e *Evaluator) evaluateEntry(ctx context.Context, snap models.AssetSnapshot, entry *models.WatchlistEntry) error {
	if !entry.ReferencePrice.IsPositive() {
		evaluatorFaultsTotal.Inc()
		logger.Log.Warn("Skipping entry with non-positive reference price",
			zap.String("user_id", entry.UserID),
			zap.Int64("asset_id", entry.AssetID),
			zap.String("reference_price", entry.ReferencePrice.String()),
		)
		return nil
	}

	pct, crossed := Crossing(entry.ReferencePrice, snap.Price, entry.AlertPercent)
	if !crossed {
		return nil
	}

	direction := models.DirectionIncrease
	if pct.IsNegative() {
		direction = models.DirectionDecrease
	}

	event := models.AlertEvent{
		ID:            uuid.New().String(),
		UserID:        entry.UserID,
		AssetID:       entry.AssetID,
		Symbol:        entry.Symbol,
		Name:          entry.Name,
		LogoURL:       entry.LogoURL,
		TriggerPrice:  snap.Price,
		PercentChange: pct,
		Direction:     direction,
		CreatedAt:     time.Now().UTC(),
	}

	// Event append and reference reset commit together, so a crossing is
	// recorded exactly once and drift restarts from the trigger price.
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.log.Append(ctx, tx, event); err != nil {
		return fmt.Errorf("append alert event: %w", err)
	}
	if err := e.entries.ResetReference(ctx, tx, entry.UserID, entry.AssetID, snap.Price); err != nil {
		return fmt.Errorf("reset reference price: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	alertsTriggeredTotal.WithLabelValues(string(direction)).Inc()
	logger.Log.Info("Alert triggered",
		zap.String("user_id", event.UserID),
		zap.String("symbol", event.Symbol),
		zap.String("percent_change", pct.StringFixed(2)),
		zap.String("direction", string(direction)),
	)

	// Delivery is best-effort and independent of the logged event.
	for _, d := range e.dispatchers {
		if err := d.DispatchPriceAlert(ctx, event); err != nil {
			logger.Log.Warn("Alert dispatch failed",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Crossing computes the percent change of price against reference and
// whether its magnitude meets the threshold. Equality counts as a
// crossing. The caller guarantees reference > 0.
func Crossing(reference, price, threshold decimal.Decimal) (decimal.Decimal, bool) {
	pct := price.Sub(reference).Div(reference).Mul(hundred)
	return pct, pct.Abs().GreaterThanOrEqual(threshold)
}
