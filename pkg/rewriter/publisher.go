package rewriter

import "context"

// Publisher turns a protected resource path into a URL that may be served
// to the client.
//
// path is the raw URL captured from the document, not HTML-escaped. The
// returned URL must not be escaped either; the rewriter escapes it before
// splicing it into the tag. Publish may be called several times with the
// same path in one document.
//
// A Rewriter calls Publish serially within one Rewrite call. Sharing a
// Rewriter between goroutines is only safe when the Publisher is itself
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// PublisherFunc adapts an ordinary function to the Publisher interface.
type PublisherFunc func(ctx context.Context, path string) (string, error)

// Publish calls f(ctx, path).
func (f PublisherFunc) Publish(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}
