package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/securelink/pkg/enum"
	"github.com/praetorian-inc/securelink/pkg/publisher"
	"github.com/praetorian-inc/securelink/pkg/rewriter"
	"github.com/praetorian-inc/securelink/pkg/watch"
)

var (
	rewriteOutput        string
	rewriteInPlace       bool
	rewriteInclude       []string
	rewriteExclude       []string
	rewriteWatch         bool
	rewriteWorkers       int
	rewriteFormat        string
	rewriteMaxFileSize   int64
	rewriteIncludeHidden bool
	rewriteColor         string
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <file|dir|->",
	Short: "Rewrite protected links in HTML documents",
	Long: `Rewrite links to protected resources in a single document, every HTML
document below a directory, or standard input ("-").

A single document or standard input is written to --output, or to stdout.
A directory is rewritten into the --output directory, or in place with
--in-place. With --watch the directory is watched and changed documents are
rewritten again until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func init() {
	rewriteCmd.Flags().StringVarP(&rewriteOutput, "output", "o", "", "Output file, or output directory for a directory target")
	rewriteCmd.Flags().BoolVar(&rewriteInPlace, "in-place", false, "Overwrite documents in place")
	rewriteCmd.Flags().StringSliceVar(&rewriteInclude, "include", nil, "Document globs relative to the target directory (default **/*.html, **/*.htm)")
	rewriteCmd.Flags().StringSliceVar(&rewriteExclude, "exclude", nil, "Globs relative to the target directory to skip")
	rewriteCmd.Flags().BoolVar(&rewriteWatch, "watch", false, "Watch a directory target and rewrite documents as they change")
	rewriteCmd.Flags().IntVar(&rewriteWorkers, "workers", 0, "Parallel documents (0 = number of CPUs)")
	rewriteCmd.Flags().StringVar(&rewriteFormat, "format", "human", "Summary format: human, json")
	rewriteCmd.Flags().Int64Var(&rewriteMaxFileSize, "max-file-size", 10*1024*1024, "Skip documents larger than this (bytes)")
	rewriteCmd.Flags().BoolVar(&rewriteIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	rewriteCmd.Flags().StringVar(&rewriteColor, "color", "auto", "Color output: auto, always, never")
}

// docResult summarizes one rewritten document.
type docResult struct {
	Path      string `json:"path"`
	Output    string `json:"output,omitempty"`
	Tags      int    `json:"tags"`
	Published int    `json:"published"`
	Skipped   int    `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runRewrite(cmd *cobra.Command, args []string) error {
	if err := loadRuntime(cmd); err != nil {
		return err
	}
	if rewriteFormat != "human" && rewriteFormat != "json" {
		return fmt.Errorf("unknown output format: %s", rewriteFormat)
	}
	if rewriteInPlace && rewriteOutput != "" {
		return fmt.Errorf("--in-place and --output are mutually exclusive")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rw, closeLedger, err := buildRewriter(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	target := args[0]
	if target == "-" {
		if rewriteInPlace || rewriteWatch {
			return fmt.Errorf("--in-place and --watch need a file or directory target")
		}
		return rewriteStdin(ctx, cmd, rw)
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}
	if !info.IsDir() {
		if rewriteWatch {
			return fmt.Errorf("--watch needs a directory target")
		}
		return rewriteSingle(ctx, cmd, rw, target)
	}

	if !rewriteInPlace && rewriteOutput == "" {
		return fmt.Errorf("a directory target needs --output <dir> or --in-place")
	}
	return rewriteTree(ctx, cmd, rw, target)
}

func rewriteStdin(ctx context.Context, cmd *cobra.Command, rw *rewriter.Rewriter) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	res, err := rw.Rewrite(publisher.ContextWithSource(ctx, "-"), string(data))
	if err != nil {
		return err
	}
	return writeDocument(cmd, rewriteOutput, res.HTML)
}

func rewriteSingle(ctx context.Context, cmd *cobra.Command, rw *rewriter.Rewriter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	res, err := rw.Rewrite(publisher.ContextWithSource(ctx, path), string(data))
	if err != nil {
		return err
	}

	out := rewriteOutput
	if rewriteInPlace {
		out = path
	}
	if err := writeDocument(cmd, out, res.HTML); err != nil {
		return err
	}
	if out == "" {
		// The document went to stdout; keep it clean.
		logger.Info().Str("path", path).Int("published", res.Published).Msg("rewrote document")
		return nil
	}
	return printSummary(cmd, []docResult{newDocResult(path, out, res)})
}

// writeDocument writes doc to path, or to stdout when path is empty.
func writeDocument(cmd *cobra.Command, path, doc string) error {
	if path == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), doc)
		return err
	}
	return writeFile(path, []byte(doc))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func enumConfig(root string) enum.Config {
	return enum.Config{
		Root:          root,
		Include:       rewriteInclude,
		Exclude:       rewriteExclude,
		IncludeHidden: rewriteIncludeHidden,
		MaxFileSize:   rewriteMaxFileSize,
		Workers:       rewriteWorkers,
	}
}

// outputPath maps a document below root to where its rewrite is written.
func outputPath(root, path string) (string, error) {
	if rewriteInPlace {
		return path, nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(rewriteOutput, rel), nil
}

// rewriteDoc rewrites one document of a tree and writes it out. Under
// --in-place unchanged documents are left untouched.
func rewriteDoc(ctx context.Context, rw *rewriter.Rewriter, root, path string, content []byte) (docResult, []byte, error) {
	out, err := outputPath(root, path)
	if err != nil {
		return docResult{Path: path}, nil, err
	}

	res, err := rw.Rewrite(publisher.ContextWithSource(ctx, path), string(content))
	if err != nil {
		return docResult{Path: path, Output: out, Error: err.Error()}, nil, err
	}

	data := []byte(res.HTML)
	if !rewriteInPlace || res.Changed() {
		if err := writeFile(out, data); err != nil {
			return docResult{Path: path, Output: out, Error: err.Error()}, nil, err
		}
	}
	return newDocResult(path, out, res), data, nil
}

func rewriteTree(ctx context.Context, cmd *cobra.Command, rw *rewriter.Rewriter, root string) error {
	var (
		mu      sync.Mutex
		results []docResult
		failed  int
	)

	// Per-document failures are reported, not fatal, so one bad link does
	// not leave half a site rewritten.
	e := enum.NewFilesystemEnumerator(enumConfig(root))
	err := e.Enumerate(ctx, func(content []byte, path string) error {
		r, _, err := rewriteDoc(ctx, rw, root, path, content)
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
		if err != nil {
			failed++
			logger.Error().Err(err).Str("path", path).Msg("rewrite failed")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rewriting %s: %w", root, err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	if err := printSummary(cmd, results); err != nil {
		return err
	}

	if rewriteWatch {
		return watchTree(ctx, cmd, rw, root)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func watchTree(ctx context.Context, cmd *cobra.Command, rw *rewriter.Rewriter, root string) error {
	w, err := watch.New(enumConfig(root), watch.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	logger.Info().Str("root", root).Msg("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if err := handleWatchEvent(ctx, cmd, rw, w, root, ev); err != nil {
				logger.Error().Err(err).Str("path", ev.Path).Msg("rewrite failed")
			}
		}
	}
}

func handleWatchEvent(ctx context.Context, cmd *cobra.Command, rw *rewriter.Rewriter, w *watch.Watcher, root string, ev watch.Event) error {
	if ev.Op == watch.OpDelete {
		if rewriteInPlace {
			return nil
		}
		out, err := outputPath(root, ev.Path)
		if err != nil {
			return err
		}
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		logger.Info().Str("path", ev.Rel).Msg("removed output")
		return nil
	}

	content, err := os.ReadFile(ev.Path)
	if err != nil {
		return err
	}
	r, written, err := rewriteDoc(ctx, rw, root, ev.Path, content)
	if err != nil {
		return err
	}
	if rewriteInPlace && written != nil {
		// Our own write must not trigger another rewrite.
		w.Remember(ev.Path, written)
	}
	return printSummary(cmd, []docResult{r})
}

func newDocResult(path, out string, res *rewriter.Result) docResult {
	return docResult{
		Path:      path,
		Output:    out,
		Tags:      res.Tags,
		Published: res.Published,
		Skipped:   res.Skipped,
	}
}

func printSummary(cmd *cobra.Command, results []docResult) error {
	if rewriteFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	out := cmd.OutOrStdout()
	s := newStyles(useColor(rewriteColor))

	var published, failed int
	for _, r := range results {
		if r.Error != "" {
			failed++
			fmt.Fprintf(out, "%s %s: %s\n", s.failed.Sprint("FAIL"), r.Path, r.Error)
			continue
		}
		published += r.Published
		status := s.unchanged.Sprint("  ok")
		if r.Published > 0 {
			status = s.changed.Sprint("  ok")
		}
		fmt.Fprintf(out, "%s %s (%d tags, %d links", status, r.Path, r.Tags, r.Published)
		if r.Skipped > 0 {
			fmt.Fprintf(out, ", %s", s.failed.Sprintf("%d skipped", r.Skipped))
		}
		fmt.Fprintln(out, ")")
	}
	if len(results) > 1 {
		fmt.Fprintf(out, "%s %d documents, %d links published, %d failed\n",
			s.heading.Sprint("Rewrite complete:"), len(results), published, failed)
	}
	return nil
}

// styles holds the color formatters for human output.
type styles struct {
	heading   *color.Color
	changed   *color.Color
	unchanged *color.Color
	failed    *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		heading:   color.New(color.Bold),
		changed:   color.New(color.FgHiGreen),
		unchanged: color.New(color.FgHiBlack),
		failed:    color.New(color.Bold, color.FgRed),
	}
	for _, c := range []*color.Color{s.heading, s.changed, s.unchanged, s.failed} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// useColor resolves a --color flag value.
func useColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}
