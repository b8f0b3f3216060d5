package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/praetorian-inc/securelink/pkg/store"
	"github.com/praetorian-inc/securelink/pkg/types"
)

// Ledger records every successful publication of the wrapped backend.
type Ledger struct {
	next     Backend
	store    store.Store
	lifetime time.Duration
	now      func() time.Time
}

// NewLedger wraps next. lifetime sets the recorded expiry; 0 records none.
func NewLedger(next Backend, st store.Store, lifetime time.Duration) *Ledger {
	return &Ledger{next: next, store: st, lifetime: lifetime, now: time.Now}
}

// Name implements Backend.
func (l *Ledger) Name() string { return l.next.Name() }

// Publish publishes through the wrapped backend and records the result.
// A publication that cannot be recorded is reported as a failure.
func (l *Ledger) Publish(ctx context.Context, resource string) (string, error) {
	u, err := l.next.Publish(ctx, resource)
	if err != nil {
		return "", err
	}

	now := l.now().UTC()
	p := &types.Publication{
		Path:        resource,
		URL:         u,
		Backend:     l.next.Name(),
		Source:      SourceFromContext(ctx),
		PublishedAt: now,
	}
	if l.lifetime > 0 {
		p.ExpiresAt = now.Add(l.lifetime)
	}
	if err := l.store.AddPublication(ctx, p); err != nil {
		return "", fmt.Errorf("recording publication: %w", err)
	}
	return u, nil
}
