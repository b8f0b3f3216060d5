// Package pattern compiles protected-resource configuration fragments into
// regexp2 matchers used by the tag rewriter.
package pattern

import "strings"

// escapedDot is the prefix that marks an extension fragment as a complete
// matcher supplied by the operator.
const escapedDot = `\.`

// softQuoteReplacer escapes backslash first so that the escapes it adds for
// the remaining characters are not doubled.
var softQuoteReplacer = []struct{ old, new string }{
	{`\`, `\\`},
	{` `, `\ `},
	{`/`, `\/`},
	{`.`, `\.`},
	{`:`, `\:`},
}

// SoftQuote escapes backslash, space, slash, dot and colon in a domain or
// folder fragment. Braces, brackets, parentheses and alternation are left
// alone so operators can still use quantifiers, classes and groups.
func SoftQuote(fragment string) string {
	for _, r := range softQuoteReplacer {
		fragment = strings.ReplaceAll(fragment, r.old, r.new)
	}
	return fragment
}

// NormalizeExtension turns a bare extension list such as "pdf|zip" into
// `\.(pdf|zip)`. A fragment that already starts with `\.` is returned as is.
func NormalizeExtension(fragment string) string {
	if strings.HasPrefix(fragment, escapedDot) {
		return fragment
	}
	return escapedDot + "(" + fragment + ")"
}
