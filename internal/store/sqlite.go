package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	appLog "countdown/internal/log"
	"countdown/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	selectColumns = `id, title, anchor_date, repeat_rule, color_tag, pinned, notes, image, created_at`

	listEventsSQL  = `SELECT ` + selectColumns + ` FROM events ORDER BY anchor_date ASC, created_at ASC, id ASC`
	getEventSQL    = `SELECT ` + selectColumns + ` FROM events WHERE id = ?`
	insertEventSQL = `INSERT INTO events (id, title, anchor_date, repeat_rule, color_tag, pinned, notes, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	updateEventSQL = `UPDATE events
		SET title = ?, anchor_date = ?, repeat_rule = ?, color_tag = ?, pinned = ?, notes = ?, image = ?
		WHERE id = ?`
	togglePinSQL   = `UPDATE events SET pinned = 1 - pinned WHERE id = ?`
	deleteEventSQL = `DELETE FROM events WHERE id = ?`
)

// SQLiteStore persists events in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns $XDG_DATA_HOME/countdown/countdown.db, falling back
// to ~/.local/share when XDG_DATA_HOME is unset.
func DefaultDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "countdown", "countdown.db"), nil
}

// OpenSQLite opens (or creates) the database at dbPath and applies pending
// migrations. An empty path selects DefaultDBPath.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		var err error
		dbPath, err = DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("determine db path: %w", err)
		}
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite serializes writers anyway; one connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	appLog.Debug("sqlite store opened", "path", dbPath)
	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// gooseLogger routes migration output through the application logger.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	appLog.Logger().Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	appLog.Logger().Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func scanEvent(scanner interface{ Scan(...any) error }) (model.Event, error) {
	var ev model.Event
	var anchor, repeat, created string
	var pinned int
	var notes sql.NullString
	var image []byte
	if err := scanner.Scan(&ev.ID, &ev.Title, &anchor, &repeat, &ev.ColorTag, &pinned, &notes, &image, &created); err != nil {
		return model.Event{}, err
	}

	d, err := time.Parse(model.DateLayout, anchor)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse anchor_date %q: %w", anchor, err)
	}
	ev.AnchorDate = d
	ev.Repeat = model.ParseRepeatRule(repeat)
	ev.Pinned = pinned != 0
	if notes.Valid {
		n := notes.String
		ev.Notes = &n
	}
	if len(image) > 0 {
		ev.Image = image
	}
	ev.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return ev, nil
}

// List returns all events ordered by anchor date, then creation time.
func (s *SQLiteStore) List(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, listEventsSQL)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Get retrieves a single event by its ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Event, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, getEventSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, model.ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return ev, nil
}

// Insert stores a new event.
func (s *SQLiteStore) Insert(ctx context.Context, ev model.Event) error {
	_, err := s.db.ExecContext(ctx, insertEventSQL,
		ev.ID, ev.Title, ev.AnchorDate.Format(model.DateLayout), ev.Repeat.String(), ev.ColorTag,
		boolInt(ev.Pinned), nullString(ev.Notes), nullBlob(ev.Image), ev.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

// Update replaces the mutable columns of an existing event. ID and
// created_at are never written.
func (s *SQLiteStore) Update(ctx context.Context, ev model.Event) error {
	res, err := s.db.ExecContext(ctx, updateEventSQL,
		ev.Title, ev.AnchorDate.Format(model.DateLayout), ev.Repeat.String(), ev.ColorTag,
		boolInt(ev.Pinned), nullString(ev.Notes), nullBlob(ev.Image), ev.ID)
	if err != nil {
		return fmt.Errorf("update event %s: %w", ev.ID, err)
	}
	return requireRow(res)
}

// TogglePin atomically flips the pinned flag of an event.
func (s *SQLiteStore) TogglePin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, togglePinSQL, id)
	if err != nil {
		return fmt.Errorf("toggle pin %s: %w", id, err)
	}
	return requireRow(res)
}

// Delete removes an event by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, deleteEventSQL, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return requireRow(res)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
