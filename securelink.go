// Package securelink rewrites links to protected resources in HTML.
//
// A Rewriter finds href and src attributes of <a>, <img>, <link>, <source>
// and <video> tags that point into a protected folder and replaces each URL
// with the one returned by a Publisher: an HMAC-signed download link, an S3
// presigned URL or an Azure SAS URL. The rest of the document is copied
// through byte for byte.
//
// # Basic Usage
//
//	rw, err := securelink.New(
//	    securelink.WithSecret([]byte(os.Getenv("SECURELINK_SECRET"))),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := rw.RewriteString(`<a href="/fileadmin/report.pdf">Report</a>`)
//	// <a href="/securelink/report.pdf?e=...&amp;p=...&amp;s=...">Report</a>
//
// # Custom Publisher
//
//	rw, err := securelink.New(
//	    securelink.WithConfig(securelink.Config{
//	        FolderPattern:        "private",
//	        FileExtensionPattern: "pdf|zip",
//	    }),
//	    securelink.WithPublisher(securelink.PublisherFunc(
//	        func(ctx context.Context, path string) (string, error) {
//	            return cdn.Sign(path), nil
//	        })),
//	)
package securelink

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/praetorian-inc/securelink/pkg/config"
	"github.com/praetorian-inc/securelink/pkg/publisher"
	"github.com/praetorian-inc/securelink/pkg/rewriter"
	"github.com/praetorian-inc/securelink/pkg/store"
	"github.com/praetorian-inc/securelink/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/securelink" without subpackages.
type (
	// Config selects which URLs are rewritten.
	Config = rewriter.Config

	// Result holds a rewritten document and its statistics.
	Result = rewriter.Result

	// Publisher turns a resource path into a published URL.
	Publisher = rewriter.Publisher

	// PublisherFunc adapts a function to Publisher.
	PublisherFunc = rewriter.PublisherFunc

	// ConfigurationError reports a pattern that does not compile.
	ConfigurationError = types.ConfigurationError

	// PublisherError reports a publisher failure for one path.
	PublisherError = types.PublisherError
)

// Re-export failure policies.
const (
	AbortOnError = rewriter.AbortOnError
	SkipTag      = rewriter.SkipTag
)

// Rewriter rewrites protected links in documents. It is safe for concurrent
// use when its Publisher is.
type Rewriter struct {
	rw     *rewriter.Rewriter
	closer func() error
}

type options struct {
	config    Config
	publisher Publisher
	secret    []byte
	logger    zerolog.Logger
}

// Option configures a Rewriter.
type Option func(*options)

// WithConfig replaces the default parser configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithPublisher sets the Publisher URLs are obtained from.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithSecret publishes through an HMAC Signer with default prefix and link
// lifetime. It is ignored when WithPublisher is also given.
func WithSecret(secret []byte) Option {
	return func(o *options) {
		o.secret = secret
	}
}

// WithLogger enables diagnostics at the configured LogLevel.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Rewriter.
//
// By default it rewrites links into fileadmin and typo3temp ending in common
// document, image and archive extensions. A Publisher is required, through
// WithPublisher or WithSecret.
func New(opts ...Option) (*Rewriter, error) {
	def, err := config.Default().Parser.Rewriter()
	if err != nil {
		return nil, err
	}
	o := &options{config: def, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	pub := o.publisher
	if pub == nil {
		if len(o.secret) == 0 {
			return nil, errors.New("a publisher is required: use WithPublisher or WithSecret")
		}
		signer, err := publisher.NewSigner(o.secret)
		if err != nil {
			return nil, err
		}
		pub = signer
	}

	rw, err := rewriter.New(o.config, pub, rewriter.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return &Rewriter{rw: rw, closer: func() error { return nil }}, nil
}

// NewFromConfig builds a Rewriter from a full configuration, including the
// publisher backend and, when configured, the publication ledger. Call Close
// to release the ledger.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Rewriter, error) {
	var st store.Store
	if cfg.Ledger.Path != "" {
		s, err := store.New(ctx, store.Config{Path: cfg.Ledger.Path})
		if err != nil {
			return nil, fmt.Errorf("opening ledger: %w", err)
		}
		st = s
	}
	closer := func() error {
		if st != nil {
			return st.Close()
		}
		return nil
	}

	backend, err := publisher.New(ctx, cfg.Publisher, st)
	if err != nil {
		closer()
		return nil, err
	}
	rwCfg, err := cfg.Parser.Rewriter()
	if err != nil {
		closer()
		return nil, err
	}
	rw, err := rewriter.New(rwCfg, backend, rewriter.WithLogger(logger))
	if err != nil {
		closer()
		return nil, err
	}
	return &Rewriter{rw: rw, closer: closer}, nil
}

// RewriteString rewrites doc. On a publisher failure it returns "" and a
// *PublisherError unless the configuration says to skip failing tags.
func (r *Rewriter) RewriteString(doc string) (string, error) {
	return r.rw.Parse(doc)
}

// RewriteBytes is RewriteString for byte slices.
func (r *Rewriter) RewriteBytes(doc []byte) ([]byte, error) {
	res, err := r.rw.Rewrite(context.Background(), string(doc))
	if err != nil {
		return nil, err
	}
	return []byte(res.HTML), nil
}

// Rewrite rewrites doc and reports statistics. ctx is passed to the
// Publisher and cancels the scan.
func (r *Rewriter) Rewrite(ctx context.Context, doc string) (*Result, error) {
	return r.rw.Rewrite(ctx, doc)
}

// RewriteFile reads and rewrites a file. The file itself is not modified.
// Publications are attributed to path.
func (r *Rewriter) RewriteFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	res, err := r.rw.Rewrite(publisher.ContextWithSource(context.Background(), path), string(content))
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

// Config returns the parser configuration in use.
func (r *Rewriter) Config() Config {
	return r.rw.Config()
}

// Close releases the ledger opened by NewFromConfig.
func (r *Rewriter) Close() error {
	return r.closer()
}
