package types

// MatchResult is a protected resource URL captured inside a tag.
// Offsets are rune offsets into the text that was searched.
type MatchResult struct {
	URL   string // captured URL, not HTML-escaped
	Quote string // quote character that delimits the URL
	Start int    // offset of the first rune of URL
	End   int    // offset one past the last rune of URL
}

// Len returns the length of the captured URL in runes.
func (m *MatchResult) Len() int {
	return m.End - m.Start
}

// TagSpan locates a reference-bearing tag inside a document.
type TagSpan struct {
	Start int // rune offset of '<'
	End   int // rune offset one past '>'
}
