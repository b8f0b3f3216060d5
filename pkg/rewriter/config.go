package rewriter

import (
	"fmt"
	"strings"
	"time"
)

// NestedSeparator is inserted before every replacement after the first one
// inside a single tag.
const NestedSeparator = "/"

// Verbosity selects which rewrite steps are logged.
type Verbosity int

const (
	VerbositySilent Verbosity = iota // no diagnostics
	VerbosityResult                  // final rewritten tag
	VerbositySteps                   // matcher, match and build steps
	VerbosityTags                    // every extracted tag before rewriting
)

// FailurePolicy decides what happens when the publisher fails.
type FailurePolicy int

const (
	// AbortOnError aborts the whole document and returns no output.
	AbortOnError FailurePolicy = iota
	// SkipTag leaves the failing tag unrewritten and keeps scanning.
	SkipTag
)

// String returns the configuration spelling of the policy.
func (p FailurePolicy) String() string {
	switch p {
	case AbortOnError:
		return "abort"
	case SkipTag:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy parses "abort" or "skip". The empty string means abort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return AbortOnError, nil
	case "skip":
		return SkipTag, nil
	default:
		return AbortOnError, fmt.Errorf("unknown failure policy %q (want abort or skip)", s)
	}
}

// Config describes which resources are protected.
type Config struct {
	// DomainPattern optionally precedes the path, e.g. "https://example.com".
	DomainPattern string

	// FolderPattern is required one or more times at the start of the path.
	FolderPattern string

	// FileExtensionPattern lists permitted extensions, e.g. "pdf|zip".
	// A value starting with `\.` is used as a complete matcher.
	FileExtensionPattern string

	// LogLevel is the diagnostic verbosity, 0 to 3.
	LogLevel int

	// CaseSensitive makes domain and folder matching case sensitive.
	CaseSensitive bool

	// OnPublishError selects the failure policy (default AbortOnError).
	OnPublishError FailurePolicy

	// MatchTimeout bounds a single regex evaluation (0 = 5s).
	MatchTimeout time.Duration
}

// validate checks the fields that are not covered by pattern compilation.
func (c Config) validate() error {
	if c.LogLevel < int(VerbositySilent) || c.LogLevel > int(VerbosityTags) {
		return fmt.Errorf("log level %d out of range 0-3", c.LogLevel)
	}
	if c.OnPublishError != AbortOnError && c.OnPublishError != SkipTag {
		return fmt.Errorf("unknown failure policy %d", c.OnPublishError)
	}
	return nil
}
