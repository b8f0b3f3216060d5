package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/securelink/pkg/config"
)

const page = `<html><body><a href="/fileadmin/report.pdf">Report</a><p>/fileadmin/text.pdf</p></body></html>`

func TestRewriteCmd_SingleFileToStdout(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	root := writeTree(t, map[string]string{"index.html": page})

	cmd, out := newTestCmd()
	err := runRewrite(cmd, []string{filepath.Join(root, "index.html")})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, `<a href="/securelink/report.pdf?e=`)
	assert.Contains(t, got, `<p>/fileadmin/text.pdf</p>`)
	// The source document is untouched.
	assert.Equal(t, page, readFile(t, filepath.Join(root, "index.html")))
}

func TestRewriteCmd_Stdin(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)

	cmd, out := newTestCmd()
	cmd.SetIn(strings.NewReader(`<img src="/typo3temp/pic.png">`))
	require.NoError(t, runRewrite(cmd, []string{"-"}))

	assert.True(t, strings.HasPrefix(out.String(), `<img src="/securelink/pic.png?e=`), out.String())
}

func TestRewriteCmd_StdinRejectsInPlace(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	rewriteInPlace = true

	cmd, _ := newTestCmd()
	err := runRewrite(cmd, []string{"-"})
	assert.Error(t, err)
}

func TestRewriteCmd_SingleFileToOutput(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	root := writeTree(t, map[string]string{"index.html": page})
	rewriteOutput = filepath.Join(t.TempDir(), "out", "index.html")

	cmd, out := newTestCmd()
	require.NoError(t, runRewrite(cmd, []string{filepath.Join(root, "index.html")}))

	assert.Contains(t, readFile(t, rewriteOutput), "/securelink/report.pdf?e=")
	assert.Contains(t, out.String(), "(1 tags, 1 links)")
}

func TestRewriteCmd_DirectoryToOutput(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	root := writeTree(t, map[string]string{
		"index.html":       page,
		"docs/about.htm":   `<a href='/fileadmin/about.pdf'>about</a>`,
		"docs/notes.txt":   `<a href="/fileadmin/notes.pdf">`,
		".hidden/x.html":   page,
		"plain/empty.html": `<p>nothing</p>`,
	})
	rewriteOutput = t.TempDir()

	cmd, out := newTestCmd()
	require.NoError(t, runRewrite(cmd, []string{root}))

	assert.Contains(t, readFile(t, filepath.Join(rewriteOutput, "index.html")), "/securelink/report.pdf?e=")
	assert.Contains(t, readFile(t, filepath.Join(rewriteOutput, "docs", "about.htm")), "/securelink/about.pdf?e=")
	assert.Equal(t, `<p>nothing</p>`, readFile(t, filepath.Join(rewriteOutput, "plain", "empty.html")))
	assert.NoFileExists(t, filepath.Join(rewriteOutput, "docs", "notes.txt"))
	assert.NoFileExists(t, filepath.Join(rewriteOutput, ".hidden", "x.html"))

	assert.Contains(t, out.String(), "Rewrite complete: 3 documents, 2 links published, 0 failed")
}

func TestRewriteCmd_DirectoryNeedsDestination(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	root := writeTree(t, map[string]string{"index.html": page})

	cmd, _ := newTestCmd()
	err := runRewrite(cmd, []string{root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output <dir> or --in-place")
}

func TestRewriteCmd_InPlaceLeavesUnchangedDocuments(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	root := writeTree(t, map[string]string{
		"index.html": page,
		"plain.html": `<p>nothing</p>`,
	})
	plain := filepath.Join(root, "plain.html")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(plain, old, old))
	rewriteInPlace = true

	cmd, _ := newTestCmd()
	require.NoError(t, runRewrite(cmd, []string{root}))

	assert.Contains(t, readFile(t, filepath.Join(root, "index.html")), "/securelink/report.pdf?e=")
	assert.Equal(t, `<p>nothing</p>`, readFile(t, plain))
	info, err := os.Stat(plain)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "unchanged document was rewritten")
}

func TestRewriteCmd_JSONSummary(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	root := writeTree(t, map[string]string{"a.html": page, "b.html": page})
	rewriteOutput = t.TempDir()
	rewriteFormat = "json"

	cmd, out := newTestCmd()
	require.NoError(t, runRewrite(cmd, []string{root}))

	var results []docResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(root, "a.html"), results[0].Path)
	assert.Equal(t, filepath.Join(rewriteOutput, "a.html"), results[0].Output)
	assert.Equal(t, 1, results[0].Published)
}

func TestRewriteCmd_FailedDocumentsReported(t *testing.T) {
	resetFlags(t)
	root := writeTree(t, map[string]string{
		"ok.html":  `<p>fine</p>`,
		"bad.html": `<a href="/fileadmin/missing.pdf">`,
	})
	// With a document root the signer refuses files that do not exist.
	useConfig(t, func(c *config.Config) { c.Publisher.Root = t.TempDir() })
	rewriteOutput = t.TempDir()

	cmd, out := newTestCmd()
	err := runRewrite(cmd, []string{root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Contains(t, out.String(), "FAIL "+filepath.Join(root, "bad.html"))
	assert.FileExists(t, filepath.Join(rewriteOutput, "ok.html"))
	assert.NoFileExists(t, filepath.Join(rewriteOutput, "bad.html"))
}

func TestRewriteCmd_SkipPolicy(t *testing.T) {
	resetFlags(t)
	root := writeTree(t, map[string]string{
		"index.html": `<a href="/fileadmin/missing.pdf">x</a>`,
	})
	useConfig(t, func(c *config.Config) {
		c.Publisher.Root = t.TempDir()
		c.Parser.OnPublishError = "skip"
	})

	cmd, out := newTestCmd()
	require.NoError(t, runRewrite(cmd, []string{filepath.Join(root, "index.html")}))
	assert.Equal(t, `<a href="/fileadmin/missing.pdf">x</a>`, out.String())
}

func TestRewriteCmd_BadFormat(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	rewriteFormat = "xml"

	cmd, _ := newTestCmd()
	err := runRewrite(cmd, []string{"-"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRewriteCmd_MissingTarget(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)

	cmd, _ := newTestCmd()
	err := runRewrite(cmd, []string{filepath.Join(t.TempDir(), "nope.html")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target does not exist")
}
