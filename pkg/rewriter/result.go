package rewriter

// Result holds the rewritten document and per-call statistics.
type Result struct {
	HTML      string  // rewritten document
	Tags      int     // reference-bearing tags extracted
	Rewritten int     // tags that received at least one replacement
	Published int     // URLs replaced
	Skipped   int     // tags left verbatim under SkipTag
	Errors    []error // publisher errors tolerated under SkipTag
}

// Changed reports whether any URL was replaced.
func (r *Result) Changed() bool {
	return r.Published > 0
}
