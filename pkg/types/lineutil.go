package types

// Position is a 1-indexed line and column in a document. Columns count runes.
type Position struct {
	Line   int
	Column int
}

// StartPosition is the position of the first rune of a document.
func StartPosition() Position {
	return Position{Line: 1, Column: 1}
}

// Advance returns the position just past text, which must start at p.
func (p Position) Advance(text []rune) Position {
	for _, r := range text {
		if r == '\n' {
			p.Line++
			p.Column = 1
		} else {
			p.Column++
		}
	}
	return p
}

// ComputeLineColumn computes the position of a rune offset in content.
func ComputeLineColumn(content []rune, offset int) Position {
	if offset > len(content) {
		offset = len(content)
	}
	return StartPosition().Advance(content[:max(offset, 0)])
}
