package dsr

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// Store persists requests in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the request database at dbPath.
// If dbPath is empty or ":memory:", an in-memory database is used.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrent performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS dsr_requests (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		received_at INTEGER NOT NULL,
		due_at INTEGER NOT NULL,
		extended INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER,
		outcome TEXT NOT NULL DEFAULT ''
	)`); err != nil {
		db.Close()
		return nil, err
	}

	// Index on (status, due_at) for the overdue scan.
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_dsr_status_due ON dsr_requests(status, due_at)`); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Create(ctx context.Context, r *Request) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO dsr_requests
		(id, patient_id, type, status, details, received_at, due_at, extended, completed_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PatientID, string(r.Type), string(r.Status), r.Details,
		r.ReceivedAt.UnixNano(), r.DueAt.UnixNano(), boolToInt(r.Extended),
		nullableTime(r.CompletedAt), r.Outcome)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, patient_id, type, status, details,
		received_at, due_at, extended, completed_at, outcome
		FROM dsr_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return r, err
}

func (s *Store) Update(ctx context.Context, r *Request) error {
	res, err := s.db.ExecContext(ctx, `UPDATE dsr_requests SET
		status = ?, details = ?, due_at = ?, extended = ?, completed_at = ?, outcome = ?
		WHERE id = ?`,
		string(r.Status), r.Details, r.DueAt.UnixNano(), boolToInt(r.Extended),
		nullableTime(r.CompletedAt), r.Outcome, r.ID)
	if err != nil {
		return errors.Wrap(err, "update request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", r.ID)
	}
	return nil
}

func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, patient_id, type, status, details,
		received_at, due_at, extended, completed_at, outcome
		FROM dsr_requests WHERE status = ? ORDER BY received_at`, string(status))
	if err != nil {
		return nil, errors.Wrap(err, "list by status")
	}
	return collectRequests(rows)
}

// ListOverdue returns open requests whose due date has passed.
func (s *Store) ListOverdue(ctx context.Context, now time.Time) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, patient_id, type, status, details,
		received_at, due_at, extended, completed_at, outcome
		FROM dsr_requests WHERE status IN (?, ?) AND due_at < ? ORDER BY due_at`,
		string(StatusPending), string(StatusInProgress), now.UnixNano())
	if err != nil {
		return nil, errors.Wrap(err, "list overdue")
	}
	return collectRequests(rows)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		r           Request
		typ, status string
		received    int64
		due         int64
		extended    int64
		completed   sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.PatientID, &typ, &status, &r.Details,
		&received, &due, &extended, &completed, &r.Outcome); err != nil {
		return nil, err
	}
	r.Type = RequestType(typ)
	r.Status = Status(status)
	r.ReceivedAt = time.Unix(0, received)
	r.DueAt = time.Unix(0, due)
	r.Extended = extended != 0
	if completed.Valid {
		t := time.Unix(0, completed.Int64)
		r.CompletedAt = &t
	}
	return &r, nil
}

func collectRequests(rows *sql.Rows) ([]*Request, error) {
	defer rows.Close()
	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
