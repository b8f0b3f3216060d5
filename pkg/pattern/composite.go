package pattern

import (
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/securelink/pkg/types"
)

const (
	quoteGroup = "quote"
	urlGroup   = "url"
)

// CompositeMatcher finds a quoted protected resource URL. It is immutable
// and safe for concurrent use.
type CompositeMatcher struct {
	re   *regexp2.Regexp
	expr string
}

// Expression assembles the composite expression without compiling it.
//
// The URL is captured in the "url" group: an optional leading slash, one or
// more folder repetitions, anything up to the extension, and the extension
// itself matched case-insensitively. The closing quote must equal the
// opening one and the URL never spans it.
func Expression(domain, folder, extension string) string {
	return fmt.Sprintf(`(?<%[1]s>["'])(?:%[3]s)?(?<%[2]s>\/?(?:%[4]s)+?(?:(?!\k<%[1]s>).)*?(?i:%[5]s))\k<%[1]s>`,
		quoteGroup, urlGroup,
		SoftQuote(domain), SoftQuote(folder), NormalizeExtension(extension))
}

// Build compiles the domain, folder and extension fragments into a
// CompositeMatcher. A fragment that breaks the expression yields a
// *types.ConfigurationError.
func Build(domain, folder, extension string, opts ...Option) (*CompositeMatcher, error) {
	o := applyOptions(opts)

	flags := regexp2.None
	if !o.caseSensitive {
		flags |= regexp2.IgnoreCase
	}

	expr := Expression(domain, folder, extension)
	re, err := regexp2.Compile(expr, flags)
	if err != nil {
		return nil, &types.ConfigurationError{Field: blameFragment(domain, folder, extension), Pattern: expr, Err: err}
	}
	re.MatchTimeout = o.matchTimeout

	return &CompositeMatcher{re: re, expr: expr}, nil
}

// MustBuild is like Build but panics on error. Intended for tests and
// package-level defaults.
func MustBuild(domain, folder, extension string, opts ...Option) *CompositeMatcher {
	m, err := Build(domain, folder, extension, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns the assembled expression.
func (m *CompositeMatcher) String() string {
	return m.expr
}

// Find returns the first protected URL in text, or nil when there is none.
func (m *CompositeMatcher) Find(text []rune) (*types.MatchResult, error) {
	match, err := m.re.FindRunesMatch(text)
	if err != nil {
		return nil, &types.MatchError{Stage: "url", Err: err}
	}
	if match == nil {
		return nil, nil
	}

	url := match.GroupByName(urlGroup)
	quote := match.GroupByName(quoteGroup)
	if url == nil || len(url.Captures) == 0 {
		return nil, nil
	}

	return &types.MatchResult{
		URL:   url.String(),
		Quote: quote.String(),
		Start: url.Index,
		End:   url.Index + url.Length,
	}, nil
}

// FindString is Find for a string argument.
func (m *CompositeMatcher) FindString(text string) (*types.MatchResult, error) {
	return m.Find([]rune(text))
}

// blameFragment compiles each fragment on its own to name the one that is
// broken. It falls back to "composite" when only the combination fails.
func blameFragment(domain, folder, extension string) string {
	checks := []struct {
		field string
		expr  string
	}{
		{"domain", SoftQuote(domain)},
		{"folder", SoftQuote(folder)},
		{"extension", NormalizeExtension(extension)},
	}
	for _, c := range checks {
		if _, err := regexp2.Compile(c.expr, regexp2.None); err != nil {
			return c.field
		}
	}
	return "composite"
}
