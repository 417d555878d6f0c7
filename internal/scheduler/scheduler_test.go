package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/alert"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/store"
)

// scriptedChecker serves canned readings per pincode and errors elsewhere.
type scriptedChecker struct {
	byPincode map[string][]domain.StockReading
	calls     []string
}

func (c *scriptedChecker) Check(_ context.Context, pincode string) ([]domain.StockReading, error) {
	c.calls = append(c.calls, pincode)
	rds, ok := c.byPincode[pincode]
	if !ok {
		return nil, errors.New("shop unreachable")
	}
	return rds, nil
}

type recordingSender struct{ sent map[int64]int }

func (r *recordingSender) SendMessage(chatID int64, _ string) error {
	r.sent[chatID]++
	return nil
}

func TestScrapeTickIsolatesPincodeFailures(t *testing.T) {
	ctx := context.Background()
	repo, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer repo.Close()

	now := time.Now().UTC()
	for i, pincode := range []string{"110001", "411001"} {
		chatID := int64(i + 1)
		require.NoError(t, repo.UpsertUser(ctx, chatID, "u"))
		require.NoError(t, repo.SetPincode(ctx, chatID, pincode))
		_, err := repo.Approve(ctx, chatID, now, 30)
		require.NoError(t, err)
		_, err = repo.TogglePreference(ctx, chatID, "Milk")
		require.NoError(t, err)
	}

	// 110001 errors; 411001 answers. Cache must still settle for 411001.
	checker := &scriptedChecker{byPincode: map[string][]domain.StockReading{
		"411001": {{Product: "Milk", Pincode: "411001", Available: false, ObservedAt: now}},
	}}

	log := zap.NewNop()
	sender := &recordingSender{sent: map[int64]int{}}
	matcher := alert.NewMatcher(repo, log, sender, time.UTC)
	digest := alert.NewDigest(repo, log, sender, time.UTC)
	s := New(repo, log, checker, matcher, digest, time.Minute, 9, time.UTC)

	s.scrapeTick(ctx)

	assert.Equal(t, []string{"110001", "411001"}, checker.calls)

	st, err := repo.GetStatus(ctx, "Milk", "411001")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, *st)

	// The failed pincode left no trace in the cache.
	st, err = repo.GetStatus(ctx, "Milk", "110001")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestSweepTicks(t *testing.T) {
	ctx := context.Background()
	repo, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer repo.Close()

	now := time.Now().UTC()
	require.NoError(t, repo.UpsertUser(ctx, 1, "u"))
	_, err = repo.Approve(ctx, 1, now.AddDate(0, 0, -40), 30)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertUser(ctx, 2, "v"))
	_, err = repo.Approve(ctx, 2, now, 30)
	require.NoError(t, err)
	require.NoError(t, repo.Pause(ctx, 2, now.AddDate(0, 0, -1)))

	s := New(repo, zap.NewNop(), nil, nil, nil, time.Minute, 9, time.UTC)
	s.expireTick(ctx, now)
	s.resumeTick(ctx, now)

	u1, err := repo.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, u1.Status)

	u2, err := repo.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.False(t, u2.Paused)
}
