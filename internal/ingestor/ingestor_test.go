package ingestor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"priceguard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	attempts  int
	responses []fetchResponse
}

type fetchResponse struct {
	snaps   []models.AssetSnapshot
	skipped int
	err     error
}

func (f *scriptedFetcher) FetchTopAssets(ctx context.Context) ([]models.AssetSnapshot, int, error) {
	idx := f.attempts
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.attempts++
	resp := f.responses[idx]
	return resp.snaps, resp.skipped, resp.err
}

type recordingUpserter struct {
	upserts []int64
	errs    map[int64]error
}

func (u *recordingUpserter) Upsert(ctx context.Context, snap models.AssetSnapshot) error {
	u.upserts = append(u.upserts, snap.AssetID)
	return u.errs[snap.AssetID]
}

type statusError struct{ temporary bool }

func (e *statusError) Error() string   { return "upstream status" }
func (e *statusError) Temporary() bool { return e.temporary }

func snaps(ids ...int64) []models.AssetSnapshot {
	out := make([]models.AssetSnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.AssetSnapshot{
			AssetID:        id,
			Symbol:         fmt.Sprintf("A%d", id),
			Price:          decimal.NewFromInt(100),
			PriceUpdatedAt: time.Now().UTC(),
		})
	}
	return out
}

func TestRunCycleCommitsAllSnapshots(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{{snaps: snaps(1, 2, 3)}}}
	upserter := &recordingUpserter{}

	in := New(fetcher, upserter, time.Minute, 5*time.Second)
	require.NoError(t, in.RunCycle(context.Background()))
	assert.Equal(t, []int64{1, 2, 3}, upserter.upserts)
}

func TestRunCycleRetriesTemporaryFailure(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{err: &statusError{temporary: true}},
		{snaps: snaps(1)},
	}}
	upserter := &recordingUpserter{}

	in := New(fetcher, upserter, time.Minute, 5*time.Second)
	require.NoError(t, in.RunCycle(context.Background()))
	assert.GreaterOrEqual(t, fetcher.attempts, 2, "fetch should have been retried")
	assert.Equal(t, []int64{1}, upserter.upserts)
}

func TestRunCycleGivesUpOnPermanentFailure(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{err: &statusError{temporary: false}},
		{snaps: snaps(1)},
	}}
	upserter := &recordingUpserter{}

	in := New(fetcher, upserter, time.Minute, 5*time.Second)
	assert.Error(t, in.RunCycle(context.Background()))
	assert.Equal(t, 1, fetcher.attempts, "a non-retryable failure must not be retried")
	assert.Empty(t, upserter.upserts)
}

func TestRunCycleNoValidRecordsIsPermanent(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{err: models.ErrNoValidRecords},
		{snaps: snaps(1)},
	}}
	upserter := &recordingUpserter{}

	in := New(fetcher, upserter, time.Minute, 5*time.Second)
	err := in.RunCycle(context.Background())
	assert.ErrorIs(t, err, models.ErrNoValidRecords)
	assert.Equal(t, 1, fetcher.attempts)
}

func TestRunCyclePartialSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{{snaps: snaps(1, 2, 3)}}}
	upserter := &recordingUpserter{errs: map[int64]error{
		2: models.ErrStaleWrite,
	}}

	in := New(fetcher, upserter, time.Minute, 5*time.Second)
	require.NoError(t, in.RunCycle(context.Background()),
		"a stale write for one asset must not fail the cycle")
	assert.Equal(t, []int64{1, 2, 3}, upserter.upserts)
}
