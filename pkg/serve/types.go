package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/securelink/pkg/rewriter"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "rewrite" | "rewrite_batch" | "close"
	Payload json.RawMessage `json:"payload"`
}

// RewritePayload is the payload for "rewrite" requests
type RewritePayload struct {
	HTML   string `json:"html"`
	Source string `json:"source"`
}

// RewriteBatchPayload is the payload for "rewrite_batch" requests
type RewriteBatchPayload struct {
	Items []RewritePayload `json:"items"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | "rewrite" | "rewrite_batch" | "error"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
}

// RewriteData is the data field for "rewrite" responses and each
// "rewrite_batch" item. Error is set instead of the counters when the item
// failed.
type RewriteData struct {
	Source    string   `json:"source,omitempty"`
	HTML      string   `json:"html"`
	Tags      int      `json:"tags"`
	Rewritten int      `json:"rewritten"`
	Published int      `json:"published"`
	Skipped   int      `json:"skipped,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// BatchData is the data field for "rewrite_batch" responses
type BatchData struct {
	Results []RewriteData `json:"results"`
}

func newRewriteData(source string, res *rewriter.Result) RewriteData {
	d := RewriteData{
		Source:    source,
		HTML:      res.HTML,
		Tags:      res.Tags,
		Rewritten: res.Rewritten,
		Published: res.Published,
		Skipped:   res.Skipped,
	}
	for _, err := range res.Errors {
		d.Warnings = append(d.Warnings, err.Error())
	}
	return d
}
