// Package alert holds the core of the bot: the matcher that turns stock
// readings into notifications, and the digest that flushes queued alerts.
package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/store"
)

// Matcher decides who gets notified when a scrape cycle produces fresh
// readings. Alerts are edge-triggered: a candidate exists only when the
// cached prior state was unavailable and the new reading is available.
type Matcher struct {
	repo       store.Repo
	log        *zap.Logger
	send       Sender
	loc        *time.Location
	retryDelay time.Duration
}

func NewMatcher(repo store.Repo, log *zap.Logger, send Sender, loc *time.Location) *Matcher {
	return &Matcher{
		repo:       repo,
		log:        log,
		send:       send,
		loc:        loc,
		retryDelay: 2 * time.Second,
	}
}

// Process handles one batch of readings from a scrape cycle. The status cache
// is updated for every reading regardless of whether anyone qualified, so the
// next cycle diffs against the state just observed. A failure for one reading
// or one user never stops the rest of the batch.
func (m *Matcher) Process(ctx context.Context, now time.Time, readings []domain.StockReading) {
	for _, rd := range readings {
		prev, err := m.repo.GetStatus(ctx, rd.Product, rd.Pincode)
		if err != nil {
			m.log.Error("status cache read failed",
				zap.Error(err), zap.String("product", rd.Product), zap.String("pincode", rd.Pincode))
			continue
		}

		// Edge detection before the cache write. An unseen product only
		// seeds the cache; it is not a transition.
		edge := prev != nil && !*prev && rd.Available

		if err := m.repo.SetStatus(ctx, rd.Product, rd.Pincode, rd.Available, now); err != nil {
			m.log.Error("status cache write failed",
				zap.Error(err), zap.String("product", rd.Product), zap.String("pincode", rd.Pincode))
			continue
		}
		if !edge {
			continue
		}

		users, err := m.repo.UsersForProduct(ctx, rd.Product, rd.Pincode)
		if err != nil {
			m.log.Error("user lookup failed",
				zap.Error(err), zap.String("product", rd.Product), zap.String("pincode", rd.Pincode))
			continue
		}
		for i := range users {
			m.notify(ctx, now, &users[i], rd)
		}
	}
}

// notify delivers instantly when the user's cadence allows it, otherwise
// queues a pending alert for the next digest. Quiet hours always defer, even
// on instant cadence.
func (m *Matcher) notify(ctx context.Context, now time.Time, u *domain.User, rd domain.StockReading) {
	if !u.CanReceiveAlerts() {
		return
	}

	if u.Cadence == domain.CadenceInstant && !u.InQuietHours(now, m.loc) {
		if err := deliver(m.send, u.ChatID, instantText(rd), m.retryDelay); err != nil {
			m.log.Error("instant alert dropped",
				zap.Error(err), zap.Int64("chatID", u.ChatID), zap.String("product", rd.Product))
		}
		return
	}

	err := m.repo.EnqueueAlert(ctx, domain.PendingAlert{
		ChatID:    u.ChatID,
		Product:   rd.Product,
		URL:       rd.URL,
		Pincode:   rd.Pincode,
		CreatedAt: rd.ObservedAt,
	})
	if err != nil {
		m.log.Error("enqueue alert failed",
			zap.Error(err), zap.Int64("chatID", u.ChatID), zap.String("product", rd.Product))
	}
}
