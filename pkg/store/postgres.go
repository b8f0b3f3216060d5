package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/praetorian-inc/securelink/pkg/types"
)

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and creates the schema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	for i, stmt := range postgresSchema {
		var args []any
		if i == 1 {
			args = append(args, SchemaVersion)
		}
		if _, err := pool.Exec(ctx, stmt, args...); err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &PostgresStore{pool: pool}, nil
}

// AddPublication stores a publication.
func (s *PostgresStore) AddPublication(ctx context.Context, p *types.Publication) error {
	var expires *time.Time
	if !p.ExpiresAt.IsZero() {
		expires = &p.ExpiresAt
	}
	var source *string
	if p.Source != "" {
		source = &p.Source
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO publications (path, url, backend, source, published_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.Path, p.URL, p.Backend, source, p.PublishedAt, expires).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("inserting publication: %w", err)
	}
	return nil
}

// GetPublications retrieves publications, newest first.
func (s *PostgresStore) GetPublications(ctx context.Context, f Filter) ([]*types.Publication, error) {
	where, args := whereClause(f,
		func(n int) string { return "$" + strconv.Itoa(n) },
		func(t time.Time) any { return t })

	rows, err := s.pool.Query(ctx, `
		SELECT id, path, url, backend, source, published_at, expires_at
		FROM publications`+where+`
		ORDER BY published_at DESC, id DESC`+limitClause(f), args...)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}

	pubs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*types.Publication, error) {
		var (
			p       types.Publication
			source  *string
			expires *time.Time
		)
		if err := row.Scan(&p.ID, &p.Path, &p.URL, &p.Backend, &source, &p.PublishedAt, &expires); err != nil {
			return nil, err
		}
		if source != nil {
			p.Source = *source
		}
		if expires != nil {
			p.ExpiresAt = *expires
		}
		return &p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning publications: %w", err)
	}
	return pubs, nil
}

// CountPublications returns the number of stored publications.
func (s *PostgresStore) CountPublications(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM publications").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting publications: %w", err)
	}
	return n, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
