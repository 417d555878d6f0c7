package store

import (
	"context"
	"errors"
	"time"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
)

// ErrNotFound is returned when a row keyed by chat ID does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for users, preferences, the product
// status cache and the pending-alert queue. Every mutation is a single
// per-user row update; there is no cross-user state to coordinate.
type Repo interface {
	// Users and settings.
	UpsertUser(ctx context.Context, chatID int64, username string) error
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	SetPincode(ctx context.Context, chatID int64, pincode string) error
	SetBlocked(ctx context.Context, chatID int64, blocked bool) (bool, error)
	SetCadence(ctx context.Context, chatID int64, c domain.Cadence) error
	SetQuietHours(ctx context.Context, chatID int64, start, end int) error

	// Subscription lifecycle.
	Approve(ctx context.Context, chatID int64, now time.Time, days int) (time.Time, error)
	Extend(ctx context.Context, chatID int64, now time.Time, days int) (time.Time, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	Pause(ctx context.Context, chatID int64, until time.Time) error
	Resume(ctx context.Context, chatID int64) (bool, error)
	ResumeDue(ctx context.Context, now time.Time) (int64, error)

	// Product preferences.
	ListPreferences(ctx context.Context, chatID int64) ([]string, error)
	TogglePreference(ctx context.Context, chatID int64, product string) (bool, error)
	ClearPreferences(ctx context.Context, chatID int64) error

	// Matching.
	ActivePincodes(ctx context.Context) ([]string, error)
	UsersForProduct(ctx context.Context, product, pincode string) ([]domain.User, error)

	// Product status cache. GetStatus returns nil when the pair has never
	// been observed.
	GetStatus(ctx context.Context, product, pincode string) (*bool, error)
	SetStatus(ctx context.Context, product, pincode string, available bool, now time.Time) error
	KnownProducts(ctx context.Context) ([]string, error)

	// Pending-alert queue.
	EnqueueAlert(ctx context.Context, a domain.PendingAlert) error
	UsersWithPending(ctx context.Context, cadences []domain.Cadence) ([]domain.User, error)
	PendingByUser(ctx context.Context, chatID int64) ([]domain.PendingAlert, error)
	DeletePending(ctx context.Context, ids []int64) error

	// Admin surface.
	CountByStatus(ctx context.Context) (map[string]int, error)
	ActiveChatIDs(ctx context.Context) ([]int64, error)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}
