package pricecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"priceguard/internal/logger"
	"priceguard/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	snapshotUpsertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_cache_upserts_total",
			Help: "Accepted snapshot upserts",
		},
	)
	staleWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_cache_stale_writes_total",
			Help: "Snapshot writes dropped for a non-advancing upstream timestamp",
		},
	)
)

func init() {
	prometheus.MustRegister(snapshotUpsertsTotal)
	prometheus.MustRegister(staleWritesTotal)
}

// SyncFunc runs inside the upsert transaction, before commit. Used to fan
// out the snapshot's display fields to dependent watchlist rows.
type SyncFunc func(ctx context.Context, tx *sql.Tx, snap models.AssetSnapshot) error

// EvaluateFunc runs after a successful commit, still under the asset's
// lock, so evaluation happens exactly once per accepted upsert and never
// observes display fields behind the snapshot.
type EvaluateFunc func(ctx context.Context, snap models.AssetSnapshot)

// Cache is the shared snapshot store: at most one live snapshot per asset,
// serialized writes per asset, concurrent reads.
type Cache struct {
	db         *sql.DB
	staleness  time.Duration
	syncFields SyncFunc
	evaluate   EvaluateFunc

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(db *sql.DB, staleness time.Duration) *Cache {
	return &Cache{
		db:        db,
		staleness: staleness,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// OnChange registers the change-notification hooks fired by accepted
// upserts. Must be called during wiring, before the ingestor starts.
func (c *Cache) OnChange(syncFields SyncFunc, evaluate EvaluateFunc) {
	c.syncFields = syncFields
	c.evaluate = evaluate
}

func (c *Cache) assetLock(assetID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[assetID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[assetID] = l
	}
	return l
}

// IsStale reports whether the cache can be trusted for serving: true when
// no snapshot exists at all, or when the newest cache write is older than
// the staleness window. The check is a global high-watermark across all
// assets, matching the serving semantics of the dashboard.
func (c *Cache) IsStale(ctx context.Context) (bool, error) {
	var latest sql.NullTime
	err := c.db.QueryRowContext(ctx, `SELECT MAX(cached_at) FROM assets`).Scan(&latest)
	if err != nil {
		return true, err
	}
	if !latest.Valid {
		return true, nil
	}
	return time.Since(latest.Time) > c.staleness, nil
}

const snapshotColumns = `asset_id, symbol, name, logo_url, price, market_cap, volume_24h, change_24h, price_updated_at, cached_at`

// Get returns the live snapshot for one asset.
func (c *Cache) Get(ctx context.Context, assetID int64) (*models.AssetSnapshot, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM assets WHERE asset_id = $1`, assetID)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return snap, nil
}

// List returns every cached snapshot ordered by market cap descending,
// the order the dashboard presents them in.
func (c *Cache) List(ctx context.Context) ([]*models.AssetSnapshot, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM assets ORDER BY market_cap DESC, asset_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// Search matches cached assets by symbol or name, case-insensitively.
func (c *Cache) Search(ctx context.Context, query string) ([]*models.AssetSnapshot, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM assets
		 WHERE symbol ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		 ORDER BY market_cap DESC, asset_id ASC`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// Upsert writes a snapshot and, when accepted, runs the registered change
// hooks: display-field sync inside the same transaction, evaluation after
// commit. The whole chain holds the asset's lock, so concurrent upserts
// for the same asset serialize while other assets proceed in parallel.
// Writes whose upstream timestamp does not advance past the stored one are
// dropped with ErrStaleWrite and leave the cache byte-identical.
func (c *Cache) Upsert(ctx context.Context, snap models.AssetSnapshot) error {
	if snap.Price.IsNegative() {
		return fmt.Errorf("snapshot for asset %d has negative price", snap.AssetID)
	}

	lock := c.assetLock(snap.AssetID)
	lock.Lock()
	defer lock.Unlock()

	snap.CachedAt = time.Now().UTC()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT price_updated_at FROM assets WHERE asset_id = $1 FOR UPDATE`,
		snap.AssetID).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if existing.Valid && !snap.PriceUpdatedAt.After(existing.Time) {
		staleWritesTotal.Inc()
		logger.Log.Debug("Dropping out-of-order snapshot",
			zap.Int64("asset_id", snap.AssetID),
			zap.Time("incoming", snap.PriceUpdatedAt),
			zap.Time("stored", existing.Time),
		)
		return models.ErrStaleWrite
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assets (asset_id, symbol, name, logo_url, price, market_cap, volume_24h, change_24h, price_updated_at, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (asset_id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			logo_url = EXCLUDED.logo_url,
			price = EXCLUDED.price,
			market_cap = EXCLUDED.market_cap,
			volume_24h = EXCLUDED.volume_24h,
			change_24h = EXCLUDED.change_24h,
			price_updated_at = EXCLUDED.price_updated_at,
			cached_at = EXCLUDED.cached_at`,
		snap.AssetID, snap.Symbol, snap.Name, snap.LogoURL, snap.Price,
		snap.MarketCap, snap.Volume24h, snap.Change24h, snap.PriceUpdatedAt, snap.CachedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot for asset %d: %w", snap.AssetID, err)
	}

	// Display-field fan-out commits or rolls back with the snapshot, so
	// readers never see an entry rendering stale fields after the
	// snapshot advanced.
	if c.syncFields != nil {
		if err := c.syncFields(ctx, tx, snap); err != nil {
			return fmt.Errorf("sync display fields for asset %d: %w", snap.AssetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	snapshotUpsertsTotal.Inc()

	// Evaluation faults must never surface to the ingestion path; the
	// evaluator logs and counts its own failures.
	if c.evaluate != nil {
		c.evaluate(ctx, snap)
	}
	return nil
}

func scanSnapshot(row *sql.Row) (*models.AssetSnapshot, error) {
	var s models.AssetSnapshot
	err := row.Scan(
		&s.AssetID, &s.Symbol, &s.Name, &s.LogoURL, &s.Price,
		&s.MarketCap, &s.Volume24h, &s.Change24h, &s.PriceUpdatedAt, &s.CachedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSnapshots(rows *sql.Rows) ([]*models.AssetSnapshot, error) {
	var snaps []*models.AssetSnapshot
	for rows.Next() {
		var s models.AssetSnapshot
		if err := rows.Scan(
			&s.AssetID, &s.Symbol, &s.Name, &s.LogoURL, &s.Price,
			&s.MarketCap, &s.Volume24h, &s.Change24h, &s.PriceUpdatedAt, &s.CachedAt,
		); err != nil {
			return nil, err
		}
		snaps = append(snaps, &s)
	}
	return snaps, rows.Err()
}
