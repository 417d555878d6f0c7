package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/store"
)

// Digest flushes queued alerts as one consolidated message per user. Users
// with an empty queue produce no message.
type Digest struct {
	repo       store.Repo
	log        *zap.Logger
	send       Sender
	loc        *time.Location
	retryDelay time.Duration
}

func NewDigest(repo store.Repo, log *zap.Logger, send Sender, loc *time.Location) *Digest {
	return &Digest{
		repo:       repo,
		log:        log,
		send:       send,
		loc:        loc,
		retryDelay: 2 * time.Second,
	}
}

// Flush dispatches the queues of users on the given cadences. Dispatch and
// deletion act as one unit: rows are deleted only after a successful send,
// and a failed send leaves them queued for the next run, never duplicated.
// Users currently inside quiet hours are skipped; their queue waits.
func (d *Digest) Flush(ctx context.Context, now time.Time, cadences ...domain.Cadence) {
	users, err := d.repo.UsersWithPending(ctx, cadences)
	if err != nil {
		d.log.Error("pending user lookup failed", zap.Error(err))
		return
	}

	for i := range users {
		u := &users[i]
		if u.InQuietHours(now, d.loc) {
			continue
		}
		d.flushQueue(ctx, u)
	}
}

// FlushStranded delivers the queues of daily-cadence users whose quiet window
// covers the daily digest hour. The daily run can never reach them, so the
// hourly run picks them up at the first hour outside their window instead.
func (d *Digest) FlushStranded(ctx context.Context, now time.Time, dailyHour int) {
	users, err := d.repo.UsersWithPending(ctx, []domain.Cadence{domain.CadenceDaily})
	if err != nil {
		d.log.Error("pending user lookup failed", zap.Error(err))
		return
	}

	for i := range users {
		u := &users[i]
		if !u.QuietEnabled() || !domain.InWindow(dailyHour, u.QuietStart, u.QuietEnd) {
			continue // the daily run handles this user
		}
		if u.InQuietHours(now, d.loc) {
			continue
		}
		d.flushQueue(ctx, u)
	}
}

// flushQueue dispatches one user's queue as a single message and consumes it.
func (d *Digest) flushQueue(ctx context.Context, u *domain.User) {
	pending, err := d.repo.PendingByUser(ctx, u.ChatID)
	if err != nil {
		d.log.Error("pending alert fetch failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
		return
	}
	if len(pending) == 0 {
		return
	}

	if err := deliver(d.send, u.ChatID, digestText(pending), d.retryDelay); err != nil {
		d.log.Error("digest dropped for now, alerts stay queued",
			zap.Error(err), zap.Int64("chatID", u.ChatID), zap.Int("alerts", len(pending)))
		return
	}

	ids := make([]int64, len(pending))
	for j, a := range pending {
		ids[j] = a.ID
	}
	if err := d.repo.DeletePending(ctx, ids); err != nil {
		d.log.Error("pending alert cleanup failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
		return
	}

	d.log.Info("digest delivered",
		zap.Int64("chatID", u.ChatID), zap.Int("alerts", len(pending)))
}
