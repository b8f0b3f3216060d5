// Package store persists the publication ledger: every resource path the
// rewriter published, with the URL it received.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/praetorian-inc/securelink/pkg/types"
)

// Store provides persistence for publications.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (memory, SQLite, PostgreSQL).
type Store interface {
	// AddPublication stores a publication and sets its ID.
	AddPublication(ctx context.Context, p *types.Publication) error

	// GetPublications retrieves publications matching f, newest first.
	GetPublications(ctx context.Context, f Filter) ([]*types.Publication, error)

	// CountPublications returns the number of stored publications.
	CountPublications(ctx context.Context) (int, error)

	// Close releases the underlying connection.
	Close() error
}

// Filter narrows GetPublications. Zero values match everything.
type Filter struct {
	Path   string
	Source string
	Since  time.Time
	Limit  int
}

func (f Filter) match(p *types.Publication) bool {
	if f.Path != "" && p.Path != f.Path {
		return false
	}
	if f.Source != "" && p.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && p.PublishedAt.Before(f.Since) {
		return false
	}
	return true
}

// Config for store initialization.
type Config struct {
	// Path selects the backend:
	//   ":memory:"                  in-process MemoryStore
	//   "postgres://..." / "postgresql://..."  PostgreSQL
	//   anything else               SQLite database file
	Path string
}

// New creates the Store selected by cfg.Path.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch {
	case cfg.Path == "":
		return nil, fmt.Errorf("path is required")
	case cfg.Path == ":memory:":
		return NewMemory(), nil
	case strings.HasPrefix(cfg.Path, "postgres://"), strings.HasPrefix(cfg.Path, "postgresql://"):
		return NewPostgres(ctx, cfg.Path)
	default:
		return NewSQLite(ctx, cfg.Path)
	}
}
