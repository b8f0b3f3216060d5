package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/praetorian-inc/securelink/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite. Timestamps are stored as Unix
// nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates the ledger database at path.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddPublication stores a publication.
func (s *SQLiteStore) AddPublication(ctx context.Context, p *types.Publication) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO publications (path, url, backend, source, published_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		p.Path,
		p.URL,
		p.Backend,
		nullString(p.Source),
		p.PublishedAt.UnixNano(),
		nullUnix(p.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting publication: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading publication id: %w", err)
	}
	p.ID = id
	return nil
}

// GetPublications retrieves publications, newest first.
func (s *SQLiteStore) GetPublications(ctx context.Context, f Filter) ([]*types.Publication, error) {
	where, args := whereClause(f,
		func(int) string { return "?" },
		func(t time.Time) any { return t.UnixNano() })

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, url, backend, source, published_at, expires_at
		FROM publications`+where+`
		ORDER BY published_at DESC, id DESC`+limitClause(f), args...)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	var pubs []*types.Publication
	for rows.Next() {
		var (
			p         types.Publication
			source    sql.NullString
			published int64
			expires   sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Path, &p.URL, &p.Backend, &source, &published, &expires); err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}
		p.Source = source.String
		p.PublishedAt = time.Unix(0, published).UTC()
		if expires.Valid {
			p.ExpiresAt = time.Unix(0, expires.Int64).UTC()
		}
		pubs = append(pubs, &p)
	}

	return pubs, rows.Err()
}

// CountPublications returns the number of stored publications.
func (s *SQLiteStore) CountPublications(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM publications").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting publications: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
