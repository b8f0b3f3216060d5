package pattern

import (
	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/securelink/pkg/types"
)

// TagNames lists the reference-bearing elements the rewriter inspects.
var TagNames = []string{"link", "source", "a", "img", "video"}

// TagExpression matches one reference-bearing tag: the opening bracket and
// tag name, anything up to an href, src or poster attribute whose value may
// be double quoted, single quoted or bare, and the rest of the tag up to '>'.
const TagExpression = `<(?:link|source|a|img|video)\b[^>]*?\b(?:href|src|poster)\s*=\s*(?:"[^">]*"|'[^'>]*'|[^\s"'>]*)[^>]*>`

// TagMatcher locates reference-bearing tags in a document.
type TagMatcher struct {
	re *regexp2.Regexp
}

// NewTagMatcher compiles TagExpression case-insensitively with newlines
// allowed inside a tag.
func NewTagMatcher(opts ...Option) (*TagMatcher, error) {
	o := applyOptions(opts)

	re, err := regexp2.Compile(TagExpression, regexp2.IgnoreCase|regexp2.Singleline)
	if err != nil {
		return nil, &types.ConfigurationError{Field: "tag", Pattern: TagExpression, Err: err}
	}
	re.MatchTimeout = o.matchTimeout

	return &TagMatcher{re: re}, nil
}

// Find returns the span of the first tag in text, or nil when there is none.
func (m *TagMatcher) Find(text []rune) (*types.TagSpan, error) {
	match, err := m.re.FindRunesMatch(text)
	if err != nil {
		return nil, &types.MatchError{Stage: "tag", Err: err}
	}
	if match == nil {
		return nil, nil
	}
	return &types.TagSpan{Start: match.Index, End: match.Index + match.Length}, nil
}
