package cmsblog

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding the submission journal: every
// contact and newsletter form post, with whether the CMS accepted it.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the admin page read while a form post writes; the busy
	// timeout makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS submissions (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    email TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    delivered INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_kind ON submissions (kind);
`)
	return err
}

// SaveSubmission records sub and returns it with its ID and CreatedAt set.
// IDs are ULIDs, so they sort in creation order.
func (s *Store) SaveSubmission(sub Submission) (Submission, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now().UTC()
	}
	if sub.ID == "" {
		sub.ID = ulid.MustNew(ulid.Timestamp(sub.CreatedAt), ulid.DefaultEntropy()).String()
	}
	delivered := 0
	if sub.Delivered {
		delivered = 1
	}
	_, err := s.db.Exec(`INSERT INTO submissions (id, kind, email, name, message, delivered, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, string(sub.Kind), sub.Email, sub.Name, sub.Message, delivered, sub.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns up to limit entries, newest first. A kind of ""
// lists every kind; limit <= 0 lists all.
func (s *Store) ListSubmissions(kind SubmissionKind, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT id, kind, email, name, message, delivered, created_at FROM submissions WHERE ? = '' OR kind = ? ORDER BY id DESC LIMIT ?`,
		string(kind), string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetSubmission returns one entry by ID, or ErrNotFound.
func (s *Store) GetSubmission(id string) (Submission, error) {
	row := s.db.QueryRow(`SELECT id, kind, email, name, message, delivered, created_at FROM submissions WHERE id = ?`, id)
	return scanSubmission(row)
}

// DeleteSubmission removes an entry by ID. It returns ErrNotFound when no
// entry had that ID.
func (s *Store) DeleteSubmission(id string) error {
	res, err := s.db.Exec(`DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (Submission, error) {
	var sub Submission
	var kind, created string
	var delivered int
	if err := row.Scan(&sub.ID, &kind, &sub.Email, &sub.Name, &sub.Message, &delivered, &created); err != nil {
		return Submission{}, err
	}
	sub.Kind = SubmissionKind(kind)
	sub.Delivered = delivered == 1
	sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return sub, nil
}
