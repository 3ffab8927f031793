package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"meshview/internal/wire"
)

// Store records camera views backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Record is one saved view.
type Record struct {
	ID        int64
	SessionID string
	SavedAt   time.Time
	View      wire.View
}

// Open creates or opens the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
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

// SaveView appends view to the history.
func (s *Store) SaveView(ctx context.Context, sessionID string, view wire.View) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO views (session_id, saved_at, eye_x, eye_y, eye_z, target_x, target_y, target_z)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		time.Now().UTC().Format(time.RFC3339Nano),
		float64(view.Position[0]), float64(view.Position[1]), float64(view.Position[2]),
		float64(view.LookAt[0]), float64(view.LookAt[1]), float64(view.LookAt[2]),
	)
	if err != nil {
		return fmt.Errorf("insert view: %w", err)
	}
	return nil
}

// LastView returns the most recently saved view. ok is false when nothing
// has been saved yet.
func (s *Store) LastView(ctx context.Context) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM views ORDER BY id DESC LIMIT 1`)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("last view: %w", err)
	}
	return rec, true, nil
}

// History returns up to limit views, newest first. A non-positive limit
// returns everything.
func (s *Store) History(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM views ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Prune keeps only the newest keep rows.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM views WHERE id NOT IN (SELECT id FROM views ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune views: %w", err)
	}
	return res.RowsAffected()
}

const recordColumns = `id, session_id, saved_at, eye_x, eye_y, eye_z, target_x, target_y, target_z`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec     Record
		savedAt string
		eye     [3]float64
		target  [3]float64
	)
	if err := row.Scan(&rec.ID, &rec.SessionID, &savedAt,
		&eye[0], &eye[1], &eye[2], &target[0], &target[1], &target[2]); err != nil {
		return Record{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse saved_at %q: %w", savedAt, err)
	}
	rec.SavedAt = t
	for i := range 3 {
		rec.View.Position[i] = float32(eye[i])
		rec.View.LookAt[i] = float32(target[i])
	}
	return rec, nil
}
