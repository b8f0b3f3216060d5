package store

import (
	"context"
	"fmt"
	"time"

	"github.com/praetorian-inc/securelink/pkg/types"
)

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	PublicationsMerged  int
	PublicationsSkipped int
	SourcesProcessed    int
}

// Merge copies the publications of every source into dest. A publication
// already present in dest with the same path, URL and publish time is
// skipped, so merging the same source twice is harmless.
func Merge(ctx context.Context, dest Store, sources ...Store) (*MergeStats, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no source ledgers specified")
	}

	existing, err := dest.GetPublications(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("reading destination: %w", err)
	}
	seen := make(map[mergeKey]bool, len(existing))
	for _, p := range existing {
		seen[keyOf(p)] = true
	}

	stats := &MergeStats{}
	for i, src := range sources {
		pubs, err := src.GetPublications(ctx, Filter{})
		if err != nil {
			return stats, fmt.Errorf("reading source %d: %w", i+1, err)
		}

		// Oldest first so IDs in dest follow publish order.
		for j := len(pubs) - 1; j >= 0; j-- {
			p := pubs[j]
			k := keyOf(p)
			if seen[k] {
				stats.PublicationsSkipped++
				continue
			}
			seen[k] = true

			c := *p
			c.ID = 0
			if err := dest.AddPublication(ctx, &c); err != nil {
				return stats, fmt.Errorf("merging from source %d: %w", i+1, err)
			}
			stats.PublicationsMerged++
		}
		stats.SourcesProcessed++
	}

	return stats, nil
}

type mergeKey struct {
	path, url string
	at        int64
}

func keyOf(p *types.Publication) mergeKey {
	return mergeKey{path: p.Path, url: p.URL, at: p.PublishedAt.Truncate(time.Microsecond).UnixNano()}
}
