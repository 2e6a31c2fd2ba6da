package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Repository interface {
	SetActiveSession(ctx context.Context, id, source string) error
	ClearActiveSession(ctx context.Context) error
	GetActiveSession(ctx context.Context) (*Session, error)

	CreateExport(ctx context.Context, rec *ExportRecord) error
	FinishExport(ctx context.Context, rec *ExportRecord) error
	GetExport(ctx context.Context, id string) (*ExportRecord, error)
	ListExports(ctx context.Context, limit int) ([]*ExportRecord, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) SetActiveSession(ctx context.Context, id, source string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET active = 0, updated_at = ? WHERE active = 1 AND id <> ?`, now, id); err != nil {
		return fmt.Errorf("clear active session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, active, source, updated_at) VALUES (?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET active = 1, source = excluded.source, updated_at = excluded.updated_at
	`, id, source, now); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ClearActiveSession(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET active = 0, updated_at = ? WHERE active = 1
	`, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetActiveSession(ctx context.Context) (*Session, error) {
	var s Session
	var updatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, source, updated_at FROM sessions WHERE active = 1
	`).Scan(&s.ID, &s.Source, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Active = true
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) CreateExport(ctx context.Context, e *ExportRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (id, session_id, status, filename, path, size_bytes, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Status, e.Filename, nullString(e.Path), e.SizeBytes, nullString(e.Error),
		e.StartedAt.UTC().Format(timeLayout))
	return err
}

// FinishExport stores the terminal status, path, size and error of rec.
func (r *SQLiteRepository) FinishExport(ctx context.Context, e *ExportRecord) error {
	finished := time.Now().UTC()
	if e.FinishedAt != nil {
		finished = e.FinishedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = ?, path = ?, size_bytes = ?, error = ?, finished_at = ? WHERE id = ?
	`, e.Status, nullString(e.Path), e.SizeBytes, nullString(e.Error), finished.Format(timeLayout), e.ID)
	return err
}

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const exportColumns = `id, session_id, status, filename, path, size_bytes, error, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(row rowScanner) (*ExportRecord, error) {
	var e ExportRecord
	var path, errMsg, finishedAt sql.NullString
	var startedAt string

	if err := row.Scan(&e.ID, &e.SessionID, &e.Status, &e.Filename, &path, &e.SizeBytes, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	e.Path = path.String
	e.Error = errMsg.String
	e.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		e.FinishedAt = &t
	}
	return &e, nil
}

func (r *SQLiteRepository) GetExport(ctx context.Context, id string) (*ExportRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+exportColumns+` FROM exports WHERE id = ?`, id)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]*ExportRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+exportColumns+` FROM exports ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ExportRecord
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, e)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// parseTime accepts both RFC3339Nano values written by this package and the
// second-precision values produced by sqlite's datetime('now').
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
