// Package prefilter rejects documents that cannot contain a reference-bearing
// tag before the regex scan runs.
package prefilter

import (
	"github.com/cloudflare/ahocorasick"
)

// Prefilter uses Aho-Corasick for case-insensitive keyword detection.
// Keywords are lowercased at construction and input is folded to ASCII
// lowercase before matching.
type Prefilter struct {
	matcher  *ahocorasick.Matcher
	keywords []string
}

// New creates a prefilter for the given keywords. A prefilter without
// keywords accepts every document.
func New(keywords []string) *Prefilter {
	pf := &Prefilter{}

	seen := make(map[string]bool)
	for _, kw := range keywords {
		kw = string(lowerASCII([]byte(kw)))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		pf.keywords = append(pf.keywords, kw)
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}

	return pf
}

// ForTags creates a prefilter that looks for "<name" for each tag name.
func ForTags(names []string) *Prefilter {
	keywords := make([]string, 0, len(names))
	for _, name := range names {
		keywords = append(keywords, "<"+name)
	}
	return New(keywords)
}

// Keywords returns the normalized keyword list.
func (pf *Prefilter) Keywords() []string {
	out := make([]string, len(pf.keywords))
	copy(out, pf.keywords)
	return out
}

// MayContain reports whether content contains at least one keyword.
// It is safe for concurrent use.
func (pf *Prefilter) MayContain(content []byte) bool {
	if pf.matcher == nil {
		return true
	}
	return pf.matcher.Contains(lowerASCII(content))
}

// lowerASCII returns a lowercased copy of b. Non-ASCII bytes are kept so
// multi-byte sequences stay intact.
func lowerASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
