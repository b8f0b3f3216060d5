package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/securelink/pkg/config"
)

const testSecret = "cli-test-secret"

// useConfig installs a validated configuration for the duration of a test.
func useConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()

	c := config.Default()
	c.Publisher.Secret = testSecret
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, config.Validate(c))

	cfg, logger = c, zerolog.Nop()
	t.Cleanup(func() {
		cfg, logger = nil, zerolog.Nop()
	})
	return c
}

// resetFlags restores every command flag variable to its default after a test.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		rewriteOutput, rewriteInPlace, rewriteWatch = "", false, false
		rewriteInclude, rewriteExclude = nil, nil
		rewriteWorkers, rewriteFormat, rewriteColor = 0, "human", "never"
		rewriteMaxFileSize, rewriteIncludeHidden = 10*1024*1024, false
		signUser, signExpires, signBackend = "", 0, false
		ledgerPath, ledgerFormat, ledgerFilter, ledgerSource = "", "table", "", ""
		ledgerSince, ledgerLimit, mergeOutput = 0, 0, ""
		configPath, verbose, quiet = "", false, false
	})
	rewriteFormat, rewriteColor, ledgerFormat = "human", "never", "table"
	rewriteMaxFileSize = 10 * 1024 * 1024
}

// newTestCmd returns a command whose output is captured in the returned buffer.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(context.Background())
	return cmd, &buf
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
