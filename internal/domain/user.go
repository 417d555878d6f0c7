package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the subscription lifecycle state of a user.
// Blocked is deliberately not a Status: it is an orthogonal flag that
// overlays any of these states.
type Status string

const (
	StatusPending Status = "pending" // registered, awaiting approval
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// Cadence is how often a user's queued alerts are flushed.
type Cadence string

const (
	CadenceInstant Cadence = "instant"
	CadenceHourly  Cadence = "hourly"
	CadenceDaily   Cadence = "daily"
)

var (
	ErrNotActive       = errors.New("subscription is not active")
	ErrInvalidPauseLen = errors.New("pause length must be 1..30 days")
)

// User is a subscriber row: identity, subscription state and alert settings.
// All timestamps are UTC.
type User struct {
	ChatID   int64
	Username string
	Pincode  string

	Status    Status
	StartDate *time.Time
	EndDate   *time.Time

	Paused     bool
	PauseUntil *time.Time
	Blocked    bool

	Cadence    Cadence
	QuietStart int // hour of day, 0..23
	QuietEnd   int // hour of day; equal to QuietStart means disabled

	CreatedAt time.Time
}

// NewUser returns a fresh pending user with default alert settings.
func NewUser(chatID int64, username string, now time.Time) *User {
	return &User{
		ChatID:    chatID,
		Username:  username,
		Status:    StatusPending,
		Cadence:   CadenceInstant,
		CreatedAt: now.UTC(),
	}
}

// CanReceiveAlerts reports whether the user passes the eligibility filter:
// active subscription, not blocked, not paused, pincode set. Quiet hours are
// not part of eligibility; they only defer delivery.
func (u *User) CanReceiveAlerts() bool {
	return u.Status == StatusActive && !u.Blocked && !u.Paused && u.Pincode != ""
}

// Approve activates the subscription for the given number of days starting
// now. It works from any status (manual approval and the auto-approve trial
// both land here) and does not touch the blocked flag.
func (u *User) Approve(now time.Time, days int) time.Time {
	start := now.UTC()
	end := start.AddDate(0, 0, days)
	u.Status = StatusActive
	u.StartDate = &start
	u.EndDate = &end
	return end
}

// Extend adds days to an active subscription, counting from the current end
// date or today, whichever is later.
func (u *User) Extend(now time.Time, days int) (time.Time, error) {
	if u.Status != StatusActive || u.EndDate == nil {
		return time.Time{}, ErrNotActive
	}
	base := now.UTC()
	if u.EndDate.After(base) {
		base = *u.EndDate
	}
	end := base.AddDate(0, 0, days)
	u.EndDate = &end
	return end, nil
}

// Expired reports whether an active subscription has run past its end date.
func (u *User) Expired(now time.Time) bool {
	return u.Status == StatusActive && u.EndDate != nil && !u.EndDate.After(now.UTC())
}

// Pause suspends alerts for 1..30 days and returns the resume time.
func (u *User) Pause(now time.Time, days int) (time.Time, error) {
	if days < 1 || days > 30 {
		return time.Time{}, fmt.Errorf("%w: got %d", ErrInvalidPauseLen, days)
	}
	until := now.UTC().AddDate(0, 0, days)
	u.Paused = true
	u.PauseUntil = &until
	return until, nil
}

// Resume clears the pause immediately, regardless of PauseUntil.
func (u *User) Resume() {
	u.Paused = false
	u.PauseUntil = nil
}

// QuietEnabled reports whether the user has a quiet-hours window configured.
func (u *User) QuietEnabled() bool {
	return u.QuietStart != u.QuietEnd
}

// InQuietHours reports whether now (interpreted in loc) falls inside the
// user's quiet window. A window with start > end wraps past midnight,
// e.g. 22–7 covers [22:00..24:00) and [00:00..07:00).
func (u *User) InQuietHours(now time.Time, loc *time.Location) bool {
	return InWindow(now.In(loc).Hour(), u.QuietStart, u.QuietEnd)
}

// InWindow returns true if hour h is inside [from..to), supporting
// wrap-around windows where from > to. from == to means an empty window.
func InWindow(h, from, to int) bool {
	if from == to {
		return false
	}
	if from < to {
		return h >= from && h < to
	}
	return h >= from || h < to
}
