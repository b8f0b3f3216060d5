// Package enum discovers HTML documents to rewrite in a directory tree.
package enum

import (
	"context"
)

// DefaultInclude selects HTML documents.
var DefaultInclude = []string{"**/*.html", "**/*.htm"}

// IgnoreFiles are read from the root, in order, when present.
var IgnoreFiles = []string{".gitignore", ".securelinkignore"}

// Enumerator discovers documents to rewrite.
type Enumerator interface {
	// Enumerate yields documents from the source.
	// The callback receives the document content and its path.
	Enumerate(ctx context.Context, callback func(content []byte, path string) error) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration.
	Root string

	// Include lists doublestar patterns relative to Root (default DefaultInclude).
	Include []string

	// Exclude lists doublestar patterns relative to Root to skip.
	Exclude []string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// Workers bounds parallel reads (0 = runtime.NumCPU()).
	Workers int
}
