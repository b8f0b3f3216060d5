package enum

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Filter decides which paths below a root are documents.
type Filter struct {
	root          string
	include       []string
	exclude       []string
	includeHidden bool
	ignore        *gitignore.GitIgnore
}

// NewFilter validates the patterns of cfg and loads the ignore files found
// in cfg.Root.
func NewFilter(cfg Config) (*Filter, error) {
	include := cfg.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, p := range append(append([]string{}, include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}

	f := &Filter{
		root:          cfg.Root,
		include:       include,
		exclude:       cfg.Exclude,
		includeHidden: cfg.IncludeHidden,
	}

	var lines []string
	for _, name := range IgnoreFiles {
		l, err := readLines(filepath.Join(cfg.Root, name))
		if err != nil {
			return nil, err
		}
		lines = append(lines, l...)
	}
	if len(lines) > 0 {
		f.ignore = gitignore.CompileIgnoreLines(lines...)
	}

	return f, nil
}

// SkipDir reports whether a directory at path should not be descended into.
func (f *Filter) SkipDir(path string) bool {
	rel, ok := f.rel(path)
	if !ok || rel == "." {
		return false
	}
	if !f.includeHidden && isHidden(filepath.Base(path)) {
		return true
	}
	return f.ignore != nil && f.ignore.MatchesPath(rel+"/")
}

// Match reports whether the file at path is a document.
func (f *Filter) Match(path string) bool {
	rel, ok := f.rel(path)
	if !ok {
		return false
	}
	if !f.includeHidden {
		for _, seg := range strings.Split(rel, "/") {
			if isHidden(seg) {
				return false
			}
		}
	}
	if f.ignore != nil && f.ignore.MatchesPath(rel) {
		return false
	}
	for _, p := range f.exclude {
		if doublestar.MatchUnvalidated(p, rel) {
			return false
		}
	}
	for _, p := range f.include {
		if doublestar.MatchUnvalidated(p, rel) {
			return true
		}
	}
	return false
}

// rel returns path relative to the root in slash form.
func (f *Filter) rel(path string) (string, bool) {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// isHidden checks if a file or directory name is hidden.
func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}
