package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
)

// userColumns is the canonical column list scanned into domain.User.
const userColumns = `chat_id, username, pincode, status, start_date, end_date,
	paused, pause_until, blocked, cadence, quiet_start, quiet_end, created_at`

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- Users and settings ---

// UpsertUser registers a user on first contact or refreshes their username.
// Subscription and alert settings of an existing row are left untouched.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, chatID int64, username string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (chat_id, username, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET username = excluded.username`,
		chatID, username, time.Now().UTC().Unix(),
	)
	return err
}

// GetUser returns a user by chatID or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (r *SQLiteRepo) SetPincode(ctx context.Context, chatID int64, pincode string) error {
	return r.updateUser(ctx, chatID, `UPDATE users SET pincode = ? WHERE chat_id = ?`, pincode, chatID)
}

// SetBlocked sets or clears the blocked overlay. Returns false when no such
// user exists. Blocking discards the user's pending queue: stale alerts must
// not surface after an unblock.
func (r *SQLiteRepo) SetBlocked(ctx context.Context, chatID int64, blocked bool) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET blocked = ? WHERE chat_id = ?`, boolToInt(blocked), chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	if blocked {
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM pending_alerts WHERE chat_id = ?`, chatID); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (r *SQLiteRepo) SetCadence(ctx context.Context, chatID int64, c domain.Cadence) error {
	return r.updateUser(ctx, chatID, `UPDATE users SET cadence = ? WHERE chat_id = ?`, string(c), chatID)
}

func (r *SQLiteRepo) SetQuietHours(ctx context.Context, chatID int64, start, end int) error {
	return r.updateUser(ctx, chatID,
		`UPDATE users SET quiet_start = ?, quiet_end = ? WHERE chat_id = ?`, start, end, chatID)
}

// updateUser runs a single-row UPDATE and maps a zero-row result to ErrNotFound.
func (r *SQLiteRepo) updateUser(ctx context.Context, chatID int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", chatID, ErrNotFound)
	}
	return nil
}

// --- Subscription lifecycle ---

// Approve activates the user's subscription for days starting now and
// returns the new end date.
func (r *SQLiteRepo) Approve(ctx context.Context, chatID int64, now time.Time, days int) (time.Time, error) {
	u, err := r.GetUser(ctx, chatID)
	if err != nil {
		return time.Time{}, err
	}
	end := u.Approve(now, days)
	err = r.updateUser(ctx, chatID, `
		UPDATE users SET status = ?, start_date = ?, end_date = ? WHERE chat_id = ?`,
		string(u.Status), toNullInt64(u.StartDate), toNullInt64(u.EndDate), chatID)
	return end, err
}

// Extend adds days to an active subscription and returns the new end date.
func (r *SQLiteRepo) Extend(ctx context.Context, chatID int64, now time.Time, days int) (time.Time, error) {
	u, err := r.GetUser(ctx, chatID)
	if err != nil {
		return time.Time{}, err
	}
	end, err := u.Extend(now, days)
	if err != nil {
		return time.Time{}, err
	}
	err = r.updateUser(ctx, chatID,
		`UPDATE users SET end_date = ? WHERE chat_id = ?`, toNullInt64(u.EndDate), chatID)
	return end, err
}

// ExpireDue flips active subscriptions whose end date has passed to expired
// and drops their queued alerts. Returns the number of rows swept.
func (r *SQLiteRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET status = 'expired'
		WHERE status = 'active' AND end_date IS NOT NULL AND end_date <= ?`,
		now.UTC().Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if _, err := r.db.ExecContext(ctx, `
			DELETE FROM pending_alerts WHERE chat_id IN
				(SELECT chat_id FROM users WHERE status = 'expired')`); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (r *SQLiteRepo) Pause(ctx context.Context, chatID int64, until time.Time) error {
	return r.updateUser(ctx, chatID,
		`UPDATE users SET paused = 1, pause_until = ? WHERE chat_id = ?`,
		until.UTC().Unix(), chatID)
}

// Resume clears the pause immediately. Returns false when no such user exists.
func (r *SQLiteRepo) Resume(ctx context.Context, chatID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET paused = 0, pause_until = NULL WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ResumeDue clears pauses whose pause_until has passed. Returns the number of
// users resumed.
func (r *SQLiteRepo) ResumeDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET paused = 0, pause_until = NULL
		WHERE paused = 1 AND pause_until IS NOT NULL AND pause_until <= ?`,
		now.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Product preferences ---

func (r *SQLiteRepo) ListPreferences(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_name FROM user_preferences
		WHERE chat_id = ? AND active = 1
		ORDER BY product_name`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// TogglePreference flips tracking of a product on or off for a user and
// returns the new state. Toggling a product never tracked turns it on.
func (r *SQLiteRepo) TogglePreference(ctx context.Context, chatID int64, product string) (bool, error) {
	var active int
	err := r.db.QueryRowContext(ctx, `
		SELECT active FROM user_preferences
		WHERE chat_id = ? AND product_name = ?`, chatID, product).Scan(&active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO user_preferences (chat_id, product_name, active, created_at)
			VALUES (?, ?, 1, ?)`, chatID, product, time.Now().UTC().Unix())
		return true, err
	case err != nil:
		return false, err
	}

	newActive := 1 - active
	_, err = r.db.ExecContext(ctx, `
		UPDATE user_preferences SET active = ?
		WHERE chat_id = ? AND product_name = ?`, newActive, chatID, product)
	return newActive == 1, err
}

func (r *SQLiteRepo) ClearPreferences(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_preferences WHERE chat_id = ?`, chatID)
	return err
}

// --- Matching ---

// ActivePincodes returns the distinct pincodes of users who can currently
// receive alerts. The scrape cycle only visits these.
func (r *SQLiteRepo) ActivePincodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT pincode FROM users
		WHERE status = 'active' AND blocked = 0 AND paused = 0 AND pincode != ''
		ORDER BY pincode`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// UsersForProduct returns users eligible for an alert about product at
// pincode: active, not blocked, not paused, tracking the product.
func (r *SQLiteRepo) UsersForProduct(ctx context.Context, product, pincode string) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixed("u", userColumns)+`
		FROM users u
		JOIN user_preferences p ON p.chat_id = u.chat_id
		WHERE p.product_name = ? AND p.active = 1
		  AND u.pincode = ? AND u.status = 'active'
		  AND u.blocked = 0 AND u.paused = 0`,
		product, pincode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// --- Product status cache ---

func (r *SQLiteRepo) GetStatus(ctx context.Context, product, pincode string) (*bool, error) {
	var avail int
	err := r.db.QueryRowContext(ctx, `
		SELECT available FROM product_status_cache
		WHERE product_name = ? AND pincode = ?`, product, pincode).Scan(&avail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b := avail != 0
	return &b, nil
}

func (r *SQLiteRepo) SetStatus(ctx context.Context, product, pincode string, available bool, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_status_cache (product_name, pincode, available, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_name, pincode) DO UPDATE SET
			available  = excluded.available,
			updated_at = excluded.updated_at`,
		product, pincode, boolToInt(available), now.UTC().Unix())
	return err
}

// KnownProducts lists every product ever observed by the scraper, for the
// preference-selection keyboard.
func (r *SQLiteRepo) KnownProducts(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT product_name FROM product_status_cache
		ORDER BY product_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// --- Pending-alert queue ---

// EnqueueAlert queues an alert for digest delivery. A duplicate of an
// already-queued (user, product, pincode) tuple is silently dropped.
func (r *SQLiteRepo) EnqueueAlert(ctx context.Context, a domain.PendingAlert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_alerts (chat_id, product_name, product_url, pincode, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, product_name, pincode) DO NOTHING`,
		a.ChatID, a.Product, a.URL, a.Pincode, a.CreatedAt.UTC().Unix())
	return err
}

// UsersWithPending returns the distinct users on one of the given cadences
// who have queued alerts and are still eligible to receive them.
func (r *SQLiteRepo) UsersWithPending(ctx context.Context, cadences []domain.Cadence) ([]domain.User, error) {
	if len(cadences) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(cadences))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(cadences))
	for _, c := range cadences {
		args = append(args, string(c))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT `+prefixed("u", userColumns)+`
		FROM users u
		JOIN pending_alerts a ON a.chat_id = u.chat_id
		WHERE u.cadence IN (`+placeholders+`)
		  AND u.status = 'active' AND u.blocked = 0 AND u.paused = 0`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// PendingByUser returns a user's queue ordered for digest rendering:
// product name ascending, detection time as tie-break.
func (r *SQLiteRepo) PendingByUser(ctx context.Context, chatID int64) ([]domain.PendingAlert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, product_name, product_url, pincode, created_at
		FROM pending_alerts
		WHERE chat_id = ?
		ORDER BY product_name ASC, created_at ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.PendingAlert
	for rows.Next() {
		var (
			a       domain.PendingAlert
			created int64
		)
		if err := rows.Scan(&a.ID, &a.ChatID, &a.Product, &a.URL, &a.Pincode, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		res = append(res, a)
	}
	return res, rows.Err()
}

// DeletePending consumes queued alerts by ID after a successful dispatch.
func (r *SQLiteRepo) DeletePending(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_alerts WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// --- Admin surface ---

// CountByStatus returns user counts keyed by subscription status, plus
// "total" and "blocked".
func (r *SQLiteRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)

	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM users GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
		stats["total"] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var blocked int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE blocked = 1`).Scan(&blocked); err != nil {
		return nil, err
	}
	stats["blocked"] = blocked
	return stats, nil
}

// ActiveChatIDs returns every active, unblocked subscriber, for broadcasts.
func (r *SQLiteRepo) ActiveChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id FROM users
		WHERE status = 'active' AND blocked = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetSetting fetches a bot setting; absent keys read as "0", matching the
// defaults seeded by the migration.
func (r *SQLiteRepo) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "0", nil
	}
	return v, err
}

func (r *SQLiteRepo) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// --- Scan helpers ---

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u          domain.User
		status     string
		cadence    string
		startNS    sql.NullInt64
		endNS      sql.NullInt64
		pauseNS    sql.NullInt64
		pausedInt  int
		blockedInt int
		createdAt  int64
	)
	if err := row.Scan(
		&u.ChatID, &u.Username, &u.Pincode, &status, &startNS, &endNS,
		&pausedInt, &pauseNS, &blockedInt, &cadence, &u.QuietStart, &u.QuietEnd, &createdAt,
	); err != nil {
		return nil, err
	}
	u.Status = domain.Status(status)
	u.Cadence = domain.Cadence(cadence)
	u.StartDate = fromNullInt64(startNS)
	u.EndDate = fromNullInt64(endNS)
	u.PauseUntil = fromNullInt64(pauseNS)
	u.Paused = pausedInt != 0
	u.Blocked = blockedInt != 0
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]domain.User, error) {
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var res []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// prefixed qualifies each column in a comma-separated list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
