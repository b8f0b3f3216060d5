package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/praetorian-inc/securelink/pkg/config"
	"github.com/praetorian-inc/securelink/pkg/store"
)

// New builds the configured backend. When st is non-nil publications are
// recorded in it, and a positive cache TTL adds a Cache in front.
func New(ctx context.Context, cfg config.PublisherConfig, st store.Store) (Backend, error) {
	if cfg.CacheTTL > 0 && cfg.CacheTTL >= cfg.LinkTimeout {
		return nil, fmt.Errorf("cache_ttl %s must be shorter than link_timeout %s", cfg.CacheTTL, cfg.LinkTimeout)
	}

	var (
		b   Backend
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "signer":
		b, err = NewSigner([]byte(cfg.Secret),
			WithPrefix(cfg.Prefix),
			WithTimeout(cfg.LinkTimeout),
			WithUser(cfg.User),
			WithRoot(cfg.Root),
		)
	case "s3":
		b, err = NewS3(ctx, cfg.S3, cfg.LinkTimeout)
	case "azure":
		b, err = NewAzure(cfg.Azure, cfg.LinkTimeout)
	default:
		return nil, fmt.Errorf("unknown publisher backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if st != nil {
		b = NewLedger(b, st, cfg.LinkTimeout)
	}
	if cfg.CacheTTL > 0 {
		b = NewCache(b, cfg.CacheTTL)
	}
	return b, nil
}

// SignerFrom builds the Signer described by cfg regardless of the selected
// backend. The gateway and the sign and verify commands use it.
func SignerFrom(cfg config.PublisherConfig) (*Signer, error) {
	return NewSigner([]byte(cfg.Secret),
		WithPrefix(cfg.Prefix),
		WithTimeout(cfg.LinkTimeout),
		WithUser(cfg.User),
		WithRoot(cfg.Root),
	)
}
