package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
)

func openTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

var now = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

func seedActiveUser(t *testing.T, r *SQLiteRepo, chatID int64, pincode string, products ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.UpsertUser(ctx, chatID, "user"))
	require.NoError(t, r.SetPincode(ctx, chatID, pincode))
	_, err := r.Approve(ctx, chatID, now, 30)
	require.NoError(t, err)
	for _, p := range products {
		on, err := r.TogglePreference(ctx, chatID, p)
		require.NoError(t, err)
		require.True(t, on)
	}
}

func TestUserLifecycle(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.UpsertUser(ctx, 100, "alice"))

	u, err := r.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, u.Status)
	assert.Equal(t, domain.CadenceInstant, u.Cadence)

	// Re-registering only refreshes the username.
	require.NoError(t, r.SetPincode(ctx, 100, "411001"))
	require.NoError(t, r.UpsertUser(ctx, 100, "alice2"))
	u, err = r.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Username)
	assert.Equal(t, "411001", u.Pincode)

	end, err := r.Approve(ctx, 100, now, 30)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 30), end)

	end, err = r.Extend(ctx, 100, now, 10)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 40), end)

	// Expiry sweep: nothing due yet, then everything after the end date.
	n, err := r.ExpireDue(ctx, now.AddDate(0, 0, 39))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.ExpireDue(ctx, now.AddDate(0, 0, 41))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	u, err = r.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, u.Status)

	_, err = r.Extend(ctx, 100, now, 5)
	assert.ErrorIs(t, err, domain.ErrNotActive)
}

func TestGetUserNotFound(t *testing.T) {
	r := openTestRepo(t)
	_, err := r.GetUser(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPauseResumeSweep(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()
	seedActiveUser(t, r, 200, "411001")

	until := now.AddDate(0, 0, 7)
	require.NoError(t, r.Pause(ctx, 200, until))

	u, err := r.GetUser(ctx, 200)
	require.NoError(t, err)
	assert.True(t, u.Paused)

	// Sweep three days in: still paused.
	n, err := r.ResumeDue(ctx, now.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Zero(t, n)

	// Sweep eight days in: resumed.
	n, err = r.ResumeDue(ctx, now.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	u, err = r.GetUser(ctx, 200)
	require.NoError(t, err)
	assert.False(t, u.Paused)
	assert.Nil(t, u.PauseUntil)

	// Explicit resume works regardless of pause_until.
	require.NoError(t, r.Pause(ctx, 200, now.AddDate(0, 0, 30)))
	ok, err := r.Resume(ctx, 200)
	require.NoError(t, err)
	assert.True(t, ok)

	u, err = r.GetUser(ctx, 200)
	require.NoError(t, err)
	assert.False(t, u.Paused)
}

func TestBlockedOverlaySurvivesStatusChanges(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()
	seedActiveUser(t, r, 300, "411001")

	ok, err := r.SetBlocked(ctx, 300, true)
	require.NoError(t, err)
	assert.True(t, ok)

	// Approve again: blocked must persist independently of status.
	_, err = r.Approve(ctx, 300, now, 30)
	require.NoError(t, err)

	u, err := r.GetUser(ctx, 300)
	require.NoError(t, err)
	assert.True(t, u.Blocked)
	assert.Equal(t, domain.StatusActive, u.Status)

	ok, err = r.SetBlocked(ctx, 999, true)
	require.NoError(t, err)
	assert.False(t, ok, "unknown user")
}

func TestUsersForProductFilters(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	seedActiveUser(t, r, 1, "411001", "Milk")
	seedActiveUser(t, r, 2, "411001", "Milk") // will be blocked
	seedActiveUser(t, r, 3, "411001", "Milk") // will be paused
	seedActiveUser(t, r, 4, "560001", "Milk") // other pincode
	seedActiveUser(t, r, 5, "411001", "Whey") // other product
	require.NoError(t, r.UpsertUser(ctx, 6, "pending"))
	require.NoError(t, r.SetPincode(ctx, 6, "411001"))
	_, err := r.TogglePreference(ctx, 6, "Milk") // pending, never approved
	require.NoError(t, err)

	_, err = r.SetBlocked(ctx, 2, true)
	require.NoError(t, err)
	require.NoError(t, r.Pause(ctx, 3, now.AddDate(0, 0, 5)))

	users, err := r.UsersForProduct(ctx, "Milk", "411001")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.EqualValues(t, 1, users[0].ChatID)

	pincodes, err := r.ActivePincodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"411001", "560001"}, pincodes)
}

func TestStatusCache(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	st, err := r.GetStatus(ctx, "Milk", "411001")
	require.NoError(t, err)
	assert.Nil(t, st, "never observed")

	require.NoError(t, r.SetStatus(ctx, "Milk", "411001", false, now))
	st, err = r.GetStatus(ctx, "Milk", "411001")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, *st)

	require.NoError(t, r.SetStatus(ctx, "Milk", "411001", true, now.Add(time.Minute)))
	st, err = r.GetStatus(ctx, "Milk", "411001")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, *st)

	products, err := r.KnownProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Milk"}, products)
}

func TestPendingQueue(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()
	seedActiveUser(t, r, 10, "411001", "Milk", "Whey")

	a := domain.PendingAlert{ChatID: 10, Product: "Whey", Pincode: "411001", CreatedAt: now}
	b := domain.PendingAlert{ChatID: 10, Product: "Milk", Pincode: "411001", CreatedAt: now.Add(time.Minute)}
	require.NoError(t, r.EnqueueAlert(ctx, a))
	require.NoError(t, r.EnqueueAlert(ctx, b))
	// Duplicate while queued is dropped.
	require.NoError(t, r.EnqueueAlert(ctx, a))

	pending, err := r.PendingByUser(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// Ordered by product name, not insertion.
	assert.Equal(t, "Milk", pending[0].Product)
	assert.Equal(t, "Whey", pending[1].Product)

	ids := []int64{pending[0].ID, pending[1].ID}
	require.NoError(t, r.DeletePending(ctx, ids))

	pending, err = r.PendingByUser(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "consumed alerts must not reappear")

	// After consumption the same tuple may queue again.
	require.NoError(t, r.EnqueueAlert(ctx, a))
	pending, err = r.PendingByUser(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestUsersWithPendingRespectsEligibility(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	seedActiveUser(t, r, 20, "411001", "Milk")
	seedActiveUser(t, r, 21, "411001", "Milk")
	require.NoError(t, r.SetCadence(ctx, 20, domain.CadenceDaily))
	require.NoError(t, r.SetCadence(ctx, 21, domain.CadenceDaily))

	for _, id := range []int64{20, 21} {
		require.NoError(t, r.EnqueueAlert(ctx, domain.PendingAlert{
			ChatID: id, Product: "Milk", Pincode: "411001", CreatedAt: now,
		}))
	}
	_, err := r.SetBlocked(ctx, 21, true)
	require.NoError(t, err)

	users, err := r.UsersWithPending(ctx, []domain.Cadence{domain.CadenceDaily})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.EqualValues(t, 20, users[0].ChatID)

	users, err = r.UsersWithPending(ctx, []domain.Cadence{domain.CadenceHourly})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestBlockAndExpiryPurgePendingQueue(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	seedActiveUser(t, r, 40, "411001", "Milk")
	seedActiveUser(t, r, 41, "411001", "Milk")
	for _, id := range []int64{40, 41} {
		require.NoError(t, r.EnqueueAlert(ctx, domain.PendingAlert{
			ChatID: id, Product: "Milk", Pincode: "411001", CreatedAt: now,
		}))
	}

	ok, err := r.SetBlocked(ctx, 40, true)
	require.NoError(t, err)
	require.True(t, ok)

	pending, err := r.PendingByUser(ctx, 40)
	require.NoError(t, err)
	assert.Empty(t, pending, "blocking discards the queue")

	// The other queue is untouched until its owner expires.
	pending, err = r.PendingByUser(ctx, 41)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	n, err := r.ExpireDue(ctx, now.AddDate(0, 0, 31))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	pending, err = r.PendingByUser(ctx, 41)
	require.NoError(t, err)
	assert.Empty(t, pending, "expiry sweep drops the queue")
}

func TestClearPreferences(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()
	seedActiveUser(t, r, 50, "411001", "Milk", "Whey")

	require.NoError(t, r.ClearPreferences(ctx, 50))
	prefs, err := r.ListPreferences(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, prefs)

	// Toggling after a clear starts tracking again.
	on, err := r.TogglePreference(ctx, 50, "Milk")
	require.NoError(t, err)
	assert.True(t, on)
}

func TestSettingsAndStats(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	v, err := r.GetSetting(ctx, "auto_approve")
	require.NoError(t, err)
	assert.Equal(t, "0", v, "seeded default")

	require.NoError(t, r.SetSetting(ctx, "auto_approve", "1"))
	v, err = r.GetSetting(ctx, "auto_approve")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = r.GetSetting(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "0", v)

	seedActiveUser(t, r, 30, "411001")
	require.NoError(t, r.UpsertUser(ctx, 31, "fresh"))
	_, err = r.SetBlocked(ctx, 30, true)
	require.NoError(t, err)

	stats, err := r.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["active"])
	assert.Equal(t, 1, stats["pending"])
	assert.Equal(t, 1, stats["blocked"])
	assert.Equal(t, 2, stats["total"])

	ids, err := r.ActiveChatIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "blocked active user is excluded from broadcasts")
}
