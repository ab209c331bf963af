package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clipper-camera/clipper-app/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDBPath())
}

// OpenPath opens the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Enqueue persists a new pending item and returns it. The assigned ID is the
// current unix-millisecond timestamp, bumped forward on collision so delivery
// order follows enqueue order.
func (s *Store) Enqueue(ctx context.Context, payloadPath string, kind MediaKind, recipients []string, overlays []Overlay) (*Item, error) {
	if strings.TrimSpace(payloadPath) == "" {
		return nil, errors.New("payload path must not be empty")
	}
	if kind != MediaImage && kind != MediaVideo {
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}

	recipientsJSON, err := json.Marshal(sliceOrEmpty(recipients))
	if err != nil {
		return nil, fmt.Errorf("marshal recipients: %w", err)
	}
	var overlaysJSON any
	if len(overlays) > 0 {
		data, err := json.Marshal(overlays)
		if err != nil {
			return nil, fmt.Errorf("marshal overlays: %w", err)
		}
		overlaysJSON = string(data)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := now.UnixMilli()

	for {
		_, err := s.execWithRetry(
			ctx,
			`INSERT INTO queue_items (
                id, payload_path, media_kind, recipients_json, overlays_json,
                status, retry_count, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			payloadPath,
			string(kind),
			string(recipientsJSON),
			overlaysJSON,
			StatusPending,
			0,
			timestamp,
			timestamp,
		)
		if err == nil {
			break
		}
		if isUniqueViolation(err) {
			id++
			continue
		}
		return nil, fmt.Errorf("insert queue item: %w", err)
	}

	return s.Get(ctx, id)
}

// Get fetches a queue item by identifier. Returns nil when absent.
func (s *Store) Get(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Has reports whether an item with the given identifier exists.
func (s *Store) Has(ctx context.Context, id int64) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_items WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return count > 0, nil
}

// IDs returns the identifiers of every item currently in the store.
func (s *Store) IDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM queue_items`)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ListPending returns pending items in creation order (oldest first). This
// defines delivery order.
func (s *Store) ListPending(ctx context.Context) ([]*Item, error) {
	return s.listWhere(ctx, `WHERE status = ?`, StatusPending)
}

// List returns all queue items in creation order.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	return s.listWhere(ctx, ``)
}

func (s *Store) listWhere(ctx context.Context, where string, args ...any) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items ` + where + ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateStatus persists a status change for one item.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	return s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
}

// UpdateRetryCount persists a retry counter change for one item.
func (s *Store) UpdateRetryCount(ctx context.Context, id int64, count int) error {
	if count < 0 {
		return errors.New("retry count must not be negative")
	}
	return s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET retry_count = ?, updated_at = ? WHERE id = ?`,
		count,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
}

// Update persists all mutable fields of an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	return s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, retry_count = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		item.Status,
		item.RetryCount,
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusUploading:
			health.Uploading += count
		}
	}
	return health, nil
}

const itemColumns = "id, payload_path, media_kind, recipients_json, overlays_json, status, retry_count, error_message, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		payloadPath  string
		mediaKind    string
		recipients   string
		overlays     sql.NullString
		statusStr    string
		retryCount   int
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&payloadPath,
		&mediaKind,
		&recipients,
		&overlays,
		&statusStr,
		&retryCount,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		PayloadPath:  payloadPath,
		MediaKind:    MediaKind(mediaKind),
		Status:       Status(statusStr),
		RetryCount:   retryCount,
		ErrorMessage: errorMessage.String,
	}
	if recipients != "" {
		if err := json.Unmarshal([]byte(recipients), &item.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients for item %d: %w", id, err)
		}
	}
	if overlays.Valid && overlays.String != "" {
		if err := json.Unmarshal([]byte(overlays.String), &item.Overlays); err != nil {
			return nil, fmt.Errorf("decode overlays for item %d: %w", id, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func sliceOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
