// Package publisher turns protected resource paths into URLs a client may
// fetch: HMAC-signed expiring links, S3 presigned URLs or Azure SAS URLs.
// Every type here satisfies rewriter.Publisher and is safe for concurrent
// use.
package publisher

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/praetorian-inc/securelink/pkg/rewriter"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrAccessDenied = errors.New("access denied")
	ErrExpired      = errors.New("link expired")
	ErrBadSignature = errors.New("bad signature")
)

// Backend is a named Publisher.
type Backend interface {
	rewriter.Publisher
	Name() string
}

type ctxKey int

const (
	sourceKey ctxKey = iota
	userKey
)

// ContextWithSource records the document being rewritten. The ledger stores
// it with each publication.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// SourceFromContext returns the document recorded by ContextWithSource.
func SourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey).(string)
	return s
}

// ContextWithUser binds published links to user, overriding the signer's
// default user.
func ContextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user recorded by ContextWithUser.
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userKey).(string)
	return u
}

// funcBackend adapts a function to Backend.
type funcBackend struct {
	name string
	fn   rewriter.PublisherFunc
}

// Func returns a Backend named name that calls fn.
func Func(name string, fn func(ctx context.Context, path string) (string, error)) Backend {
	return &funcBackend{name: name, fn: fn}
}

func (f *funcBackend) Publish(ctx context.Context, path string) (string, error) {
	return f.fn(ctx, path)
}

func (f *funcBackend) Name() string { return f.name }

// cleanPath reduces a captured URL to a rooted, cleaned resource path. Any
// scheme and host are dropped along with the query and fragment. Paths with
// a ".." segment are refused.
func cleanPath(raw string) (string, error) {
	if raw == "" {
		return "", ErrNotFound
	}

	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrAccessDenied
		}
	}

	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "", ErrNotFound
	}
	return cleaned, nil
}

// objectKey turns a resource path into a bucket key, dropping the leading
// slash and strip prefix.
func objectKey(resource, stripPrefix string) (string, error) {
	p, err := cleanPath(resource)
	if err != nil {
		return "", err
	}
	if stripPrefix != "" {
		prefix := "/" + strings.Trim(stripPrefix, "/")
		if p != prefix && !strings.HasPrefix(p, prefix+"/") {
			return "", ErrNotFound
		}
		p = strings.TrimPrefix(p, prefix)
	}
	key := strings.TrimPrefix(p, "/")
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}
