// Package rewriter replaces protected resource URLs inside reference-bearing
// HTML tags with URLs obtained from a Publisher.
//
// The document is scanned left to right. Each link, source, a, img or video
// tag carrying an href, src or poster attribute is searched for quoted URLs
// matching the configured composite pattern. The first URL in a tag is
// replaced in place; every further URL in the same tag is replaced and
// prefixed with NestedSeparator. Text outside recognized tags is copied
// unchanged.
package rewriter

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/praetorian-inc/securelink/pkg/pattern"
	"github.com/praetorian-inc/securelink/pkg/prefilter"
	"github.com/praetorian-inc/securelink/pkg/types"
	"github.com/rs/zerolog"
)

// Rewriter is immutable after New and may be shared between goroutines
// when its Publisher is safe for concurrent use.
type Rewriter struct {
	cfg       Config
	composite *pattern.CompositeMatcher
	tags      *pattern.TagMatcher
	prefilter *prefilter.Prefilter
	publisher Publisher
	logger    zerolog.Logger
	verbosity Verbosity
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the diagnostics sink. Without it diagnostics are dropped.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Rewriter) {
		r.logger = logger
	}
}

// New compiles the matchers for cfg. Pattern compilation failures are
// returned as *types.ConfigurationError.
func New(cfg Config, pub Publisher, opts ...Option) (*Rewriter, error) {
	if pub == nil {
		return nil, errors.New("rewriter: publisher is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("rewriter: %w", err)
	}

	matchOpts := []pattern.Option{
		pattern.WithCaseSensitive(cfg.CaseSensitive),
		pattern.WithMatchTimeout(cfg.MatchTimeout),
	}

	composite, err := pattern.Build(cfg.DomainPattern, cfg.FolderPattern, cfg.FileExtensionPattern, matchOpts...)
	if err != nil {
		return nil, err
	}
	tags, err := pattern.NewTagMatcher(matchOpts...)
	if err != nil {
		return nil, err
	}

	r := &Rewriter{
		cfg:       cfg,
		composite: composite,
		tags:      tags,
		prefilter: prefilter.ForTags(pattern.TagNames),
		publisher: pub,
		logger:    zerolog.Nop(),
		verbosity: Verbosity(cfg.LogLevel),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "rewriter").Logger()

	r.trace(VerbositySteps).
		Str("matcher", composite.String()).
		Msg("composite matcher built")

	return r, nil
}

// Config returns the configuration the Rewriter was built with.
func (r *Rewriter) Config() Config {
	return r.cfg
}

// Matcher returns the composite URL matcher.
func (r *Rewriter) Matcher() *pattern.CompositeMatcher {
	return r.composite
}

// Parse rewrites doc and returns the new document.
func (r *Rewriter) Parse(doc string) (string, error) {
	res, err := r.Rewrite(context.Background(), doc)
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

// Rewrite rewrites doc and reports what was changed.
//
// With AbortOnError any publisher failure returns a nil Result and an error
// wrapping *types.PublisherError. With SkipTag the failing tag is copied
// verbatim and the error is recorded in Result.Errors. A cancelled context
// aborts between tags.
func (r *Rewriter) Rewrite(ctx context.Context, doc string) (*Result, error) {
	res := &Result{}

	if !r.prefilter.MayContain([]byte(doc)) {
		res.HTML = doc
		return res, nil
	}

	// The matchers work on runes; output is always sliced from doc so bytes
	// that are not valid UTF-8 pass through untouched.
	runes := []rune(doc)
	offs := runeOffsets(doc, len(runes))
	cur := 0
	pos := types.StartPosition()
	var out strings.Builder
	out.Grow(len(doc))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		span, err := r.tags.Find(runes[cur:])
		if err != nil {
			return nil, err
		}
		if span == nil {
			break
		}

		start, end := cur+span.Start, cur+span.End
		out.WriteString(doc[offs[cur]:offs[start]])
		tag := doc[offs[start]:offs[end]]
		pos = pos.Advance(runes[cur:start])
		at := pos
		pos = pos.Advance(runes[start:end])
		cur = end
		res.Tags++

		r.trace(VerbosityTags).
			Int("line", at.Line).
			Int("column", at.Column).
			Str("tag", tag).
			Msg("extracted tag")

		rewritten, published, err := r.rewriteTag(ctx, tag, runes[start:end], offs[start:end+1])
		if err != nil {
			var pubErr *types.PublisherError
			if r.cfg.OnPublishError == SkipTag && errors.As(err, &pubErr) {
				r.logger.Warn().Err(err).Int("line", at.Line).Msg("leaving tag unrewritten")
				out.WriteString(tag)
				res.Skipped++
				res.Errors = append(res.Errors, err)
				continue
			}
			return nil, err
		}

		out.WriteString(rewritten)
		if published > 0 {
			res.Rewritten++
			res.Published += published
		}
	}

	out.WriteString(doc[offs[cur]:])
	res.HTML = out.String()
	return res, nil
}

// runeOffsets returns the byte offset of every rune in s plus len(s) as the
// final entry. Each invalid byte counts as one rune, as in []rune(s).
func runeOffsets(s string, n int) []int {
	offs := make([]int, 0, n+1)
	for i := 0; i < len(s); {
		offs = append(offs, i)
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return append(offs, len(s))
}

// rewriteTag replaces every protected URL in tag and returns the new tag
// text with the number of URLs published. runes is tag as runes and offs
// holds the absolute byte offset of each rune plus the end. Nothing is
// returned on error.
func (r *Rewriter) rewriteTag(ctx context.Context, tag string, runes []rune, offs []int) (string, int, error) {
	var out strings.Builder
	base := offs[0]
	cur := 0
	published := 0

	for {
		m, err := r.composite.Find(runes[cur:])
		if err != nil {
			return "", 0, err
		}
		if m == nil {
			break
		}

		r.trace(VerbositySteps).
			Str("url", m.URL).
			Int("start", m.Start).
			Int("end", m.End).
			Bool("nested", published > 0).
			Msg("matched url")

		replacement, err := r.publish(ctx, m.URL)
		if err != nil {
			return "", 0, err
		}

		out.WriteString(tag[offs[cur]-base : offs[cur+m.Start]-base])
		if published > 0 {
			out.WriteString(NestedSeparator)
		}
		out.WriteString(replacement)

		r.trace(VerbositySteps).
			Str("url", m.URL).
			Str("replacement", replacement).
			Msg("built replacement")

		cur += m.End
		published++
	}

	if published == 0 {
		return tag, 0, nil
	}

	out.WriteString(tag[offs[cur]-base:])
	rewritten := out.String()

	r.trace(VerbosityResult).
		Str("tag", rewritten).
		Int("urls", published).
		Msg("rewrote tag")

	return rewritten, published, nil
}

// publish calls the Publisher and HTML-escapes its result.
func (r *Rewriter) publish(ctx context.Context, path string) (string, error) {
	url, err := r.publisher.Publish(ctx, path)
	if err != nil {
		return "", &types.PublisherError{Path: path, Err: err}
	}
	return html.EscapeString(url), nil
}

// trace returns an event when the configured verbosity reaches min, or nil.
// zerolog methods on a nil event are no-ops.
func (r *Rewriter) trace(min Verbosity) *zerolog.Event {
	if r.verbosity < min {
		return nil
	}
	return r.logger.Info()
}
