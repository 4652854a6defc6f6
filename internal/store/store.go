package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mvdbosch/bookwish/internal/lifecycle"
	"github.com/mvdbosch/bookwish/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ ItemReader  = (*Store)(nil)
	_ ItemWriter  = (*Store)(nil)
	_ ItemClaimer = (*Store)(nil)
	_ LogStore    = (*Store)(nil)
)

// Store provides data access to the SQLite database. It is the single source
// of truth for item status; every mutation goes through a per-item atomic
// update so readers never observe a partial write.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// migrations is an ordered list of migration functions.
	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: initial schema
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id              TEXT PRIMARY KEY,
		author          TEXT NOT NULL,
		title           TEXT NOT NULL,
		status          TEXT NOT NULL,
		added_via       TEXT NOT NULL,
		added_at        TEXT NOT NULL,
		last_search     TEXT,
		error_message   TEXT,
		found_reference TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_items_status ON items(status, added_at);

	CREATE TABLE IF NOT EXISTS logs (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id   TEXT,
		timestamp TEXT NOT NULL,
		level     TEXT NOT NULL,
		message   TEXT NOT NULL,
		author    TEXT NOT NULL DEFAULT '',
		title     TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_logs_item ON logs(item_id);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

const itemColumns = `id, author, title, status, added_via, added_at, last_search, error_message, found_reference`

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// CreateItem inserts a new item and its creation log entry in one
// transaction. An existing item with the same author and title is reported
// as model.ErrDuplicate.
func (s *Store) CreateItem(ctx context.Context, item model.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM items WHERE author = ? AND title = ? LIMIT 1`,
		item.Author, item.Title,
	).Scan(&existing)
	if err == nil {
		return fmt.Errorf("%s: %w", item.RawLine(), model.ErrDuplicate)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check duplicate: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Author, item.Title, item.Status, item.AddedVia, item.AddedAt,
		item.LastSearch, item.ErrorMessage, item.FoundReference,
	); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	entry := model.NewLogEntry(&item, model.LevelInfo, "added via "+item.AddedVia)
	if err := insertLog(ctx, tx, entry); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}

	return tx.Commit()
}

// GetItem returns an item together with its activity log, newest entry first.
func (s *Store) GetItem(ctx context.Context, id string) (*model.ItemWithLogs, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	logs, err := s.ListLogs(ctx, &id, 100)
	if err != nil {
		return nil, err
	}
	return &model.ItemWithLogs{Item: *item, Logs: logs}, nil
}

// ListItems returns items matching the given filter, newest first.
func (s *Store) ListItems(ctx context.Context, f model.ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []interface{}

	if len(f.Status) > 0 {
		placeholders := make([]string, len(f.Status))
		for i, st := range f.Status {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY added_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CountByStatus returns the number of items per status plus the total.
func (s *Store) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	var c model.StatusCounts
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM items`,
		model.StatusPending, model.StatusSearching, model.StatusFound, model.StatusFailed)
	if err := row.Scan(&c.Total, &c.Pending, &c.Searching, &c.Found, &c.Failed); err != nil {
		return c, err
	}
	return c, nil
}

// ListPending returns up to limit pending items, oldest first, so the worker
// cycle stays bounded.
func (s *Store) ListPending(ctx context.Context, limit int) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE status = ? ORDER BY added_at ASC, id LIMIT ?`,
		model.StatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ApplyDecision atomically applies a lifecycle decision: the status and field
// changes plus the log entry land in a single transaction, and the update
// succeeds only when the item is still in fromStatus. A lost race is reported
// as model.ErrConflict, a missing item as model.ErrNotFound.
func (s *Store) ApplyDecision(ctx context.Context, id, fromStatus string, d lifecycle.Decision) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var row *sql.Row
	if d.SetLastSearch {
		now := time.Now().UTC().Format(time.RFC3339)
		row = tx.QueryRowContext(ctx, `
			UPDATE items SET status = ?, error_message = ?, found_reference = ?, last_search = ?
			WHERE id = ? AND status = ?
			RETURNING `+itemColumns,
			d.NextStatus, d.ErrorMessage, d.FoundReference, now, id, fromStatus,
		)
	} else {
		row = tx.QueryRowContext(ctx, `
			UPDATE items SET status = ?, error_message = ?, found_reference = ?
			WHERE id = ? AND status = ?
			RETURNING `+itemColumns,
			d.NextStatus, d.ErrorMessage, d.FoundReference, id, fromStatus,
		)
	}

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the item is gone or another cycle got there first.
		var exists int
		if qErr := tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&exists); errors.Is(qErr, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		} else if qErr != nil {
			return nil, qErr
		}
		return nil, model.ErrConflict
	}
	if err != nil {
		return nil, err
	}

	if d.Log != nil {
		if err := insertLog(ctx, tx, *d.Log); err != nil {
			return nil, fmt.Errorf("insert log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

// ResetStaleSearching returns any searching items to pending. Called at boot:
// a crash mid-search must not leave items claimed forever.
func (s *Store) ResetStaleSearching(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = ? WHERE status = ?`,
		model.StatusPending, model.StatusSearching,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteItem removes an item. Its log entries are kept; they carry their own
// author/title snapshot.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// BulkDeleteByStatus removes all items with the given status and reports how
// many were removed.
func (s *Store) BulkDeleteByStatus(ctx context.Context, status string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE status = ?`, status)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// Logs
// ---------------------------------------------------------------------------

// AppendLog adds one activity log entry.
func (s *Store) AppendLog(ctx context.Context, e model.LogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (item_id, timestamp, level, message, author, title) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ItemID, e.Timestamp, e.Level, e.Message, e.Author, e.Title,
	)
	return err
}

// ListLogs returns log entries, newest first. When itemID is non-nil only
// that item's entries are returned.
func (s *Store) ListLogs(ctx context.Context, itemID *string, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, item_id, timestamp, level, message, author, title FROM logs`
	var args []interface{}
	if itemID != nil {
		query += ` WHERE item_id = ?`
		args = append(args, *itemID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Timestamp, &e.Level, &e.Message, &e.Author, &e.Title); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TrimLogs keeps the newest keep entries and deletes the rest. Individual
// entries are never mutated; this is the only permitted bulk retention trim.
func (s *Store) TrimLogs(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM logs WHERE id NOT IN (SELECT id FROM logs ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func insertLog(ctx context.Context, tx *sql.Tx, e model.LogEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO logs (item_id, timestamp, level, message, author, title) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ItemID, e.Timestamp, e.Level, e.Message, e.Author, e.Title,
	)
	return err
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (*model.Item, error) {
	var item model.Item
	err := row.Scan(&item.ID, &item.Author, &item.Title, &item.Status, &item.AddedVia,
		&item.AddedAt, &item.LastSearch, &item.ErrorMessage, &item.FoundReference)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
