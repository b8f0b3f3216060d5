package types

import "fmt"

// ConfigurationError reports a pattern fragment that could not be compiled.
type ConfigurationError struct {
	Field   string // "domain", "folder", "extension" or "tag"
	Pattern string // the assembled expression that failed
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("compiling pattern %q: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("compiling %s pattern %q: %v", e.Field, e.Pattern, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PublisherError reports a resource publisher failure for a single path.
type PublisherError struct {
	Path string
	Err  error
}

func (e *PublisherError) Error() string {
	return fmt.Sprintf("publishing %q: %v", e.Path, e.Err)
}

func (e *PublisherError) Unwrap() error {
	return e.Err
}

// MatchError reports a regex engine failure such as a match timeout.
type MatchError struct {
	Stage string // "tag" or "url"
	Err   error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%s match: %v", e.Stage, e.Err)
}

func (e *MatchError) Unwrap() error {
	return e.Err
}
