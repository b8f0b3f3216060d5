package pattern

import "time"

// DefaultMatchTimeout bounds a single regexp2 evaluation.
const DefaultMatchTimeout = 5 * time.Second

// options holds matcher construction settings.
type options struct {
	caseSensitive bool
	matchTimeout  time.Duration
}

// Option configures Build and NewTagMatcher.
type Option func(*options)

// WithCaseSensitive makes the domain and folder parts case sensitive.
// The extension is always matched case-insensitively.
func WithCaseSensitive(enabled bool) Option {
	return func(o *options) {
		o.caseSensitive = enabled
	}
}

// WithMatchTimeout sets the regexp2 match timeout (0 keeps the default).
func WithMatchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.matchTimeout = d
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{matchTimeout: DefaultMatchTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
