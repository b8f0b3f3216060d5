package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/praetorian-inc/securelink/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every backend that runs without
// external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqlite, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func pub(path, source string, at time.Time) *types.Publication {
	return &types.Publication{
		Path:        path,
		URL:         "/securelink/" + filepath.Base(path) + "?s=x",
		Backend:     "signer",
		Source:      source,
		PublishedAt: at,
		ExpiresAt:   at.Add(time.Hour),
	}
}

func TestStore_AddAndGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := pub("/fileadmin/a.pdf", "index.html", base)
			b := pub("/fileadmin/b.pdf", "about.html", base.Add(time.Minute))
			c := pub("/fileadmin/a.pdf", "", base.Add(2*time.Minute))
			c.ExpiresAt = time.Time{}

			for _, p := range []*types.Publication{a, b, c} {
				require.NoError(t, s.AddPublication(ctx, p))
				assert.NotZero(t, p.ID)
			}
			assert.NotEqual(t, a.ID, b.ID)

			n, err := s.CountPublications(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			all, err := s.GetPublications(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "/fileadmin/a.pdf", all[0].Path)
			assert.Equal(t, "", all[0].Source)
			assert.True(t, all[0].ExpiresAt.IsZero())
			assert.Equal(t, "/fileadmin/b.pdf", all[1].Path)
			assert.True(t, base.Equal(all[2].PublishedAt))
			assert.True(t, base.Add(time.Hour).Equal(all[2].ExpiresAt))
			assert.Equal(t, "index.html", all[2].Source)

			byPath, err := s.GetPublications(ctx, Filter{Path: "/fileadmin/a.pdf"})
			require.NoError(t, err)
			assert.Len(t, byPath, 2)

			bySource, err := s.GetPublications(ctx, Filter{Source: "about.html"})
			require.NoError(t, err)
			require.Len(t, bySource, 1)
			assert.Equal(t, b.ID, bySource[0].ID)

			since, err := s.GetPublications(ctx, Filter{Since: base.Add(time.Minute)})
			require.NoError(t, err)
			assert.Len(t, since, 2)

			limited, err := s.GetPublications(ctx, Filter{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.AddPublication(ctx, pub("/a.pdf", "", time.Now())))

	got, err := s.GetPublications(ctx, Filter{})
	require.NoError(t, err)
	got[0].Path = "changed"

	again, err := s.GetPublications(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "/a.pdf", again[0].Path)
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.AddPublication(ctx, pub("/a.pdf", "", time.Now())))
	require.NoError(t, s.Close())

	s, err = NewSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountPublications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var version int
	require.NoError(t, s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{})
	assert.Error(t, err)

	s, err := New(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(ctx, Config{Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	src1 := NewMemory()
	src2 := NewMemory()
	require.NoError(t, src1.AddPublication(ctx, pub("/a.pdf", "x.html", base)))
	require.NoError(t, src1.AddPublication(ctx, pub("/b.pdf", "x.html", base.Add(time.Second))))
	require.NoError(t, src2.AddPublication(ctx, pub("/a.pdf", "x.html", base)))
	require.NoError(t, src2.AddPublication(ctx, pub("/c.pdf", "y.html", base.Add(2*time.Second))))

	dest, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "merged.db"))
	require.NoError(t, err)
	defer dest.Close()

	stats, err := Merge(ctx, dest, src1, src2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.PublicationsMerged)
	assert.Equal(t, 1, stats.PublicationsSkipped)
	assert.Equal(t, 2, stats.SourcesProcessed)

	// Merging again adds nothing.
	stats, err = Merge(ctx, dest, src1)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PublicationsMerged)
	assert.Equal(t, 2, stats.PublicationsSkipped)

	n, err := dest.CountPublications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Merge(ctx, dest)
	assert.Error(t, err)
}
