package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRuntime_FromFlag(t *testing.T) {
	resetFlags(t)
	t.Cleanup(func() { cfg, logger = nil, zerolog.Nop() })

	path := filepath.Join(t.TempDir(), "securelink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parser:
  folder: private
  extension: pdf
publisher:
  secret: from-file
log:
  level: warn
`), 0o644))
	configPath = path

	cmd, _ := newTestCmd()
	require.NoError(t, loadRuntime(cmd))

	require.NotNil(t, cfg)
	assert.Equal(t, "private", cfg.Parser.FolderPattern)
	assert.Equal(t, "from-file", cfg.Publisher.Secret)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestLoadRuntime_VerboseAndQuiet(t *testing.T) {
	resetFlags(t)
	t.Setenv("SECURELINK_SECRET", "env-secret")
	t.Setenv("SECURELINK_CONFIG", "")
	t.Chdir(t.TempDir())

	verbose = true
	cmd, _ := newTestCmd()
	require.NoError(t, loadRuntime(cmd))
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	assert.Equal(t, "env-secret", cfg.Publisher.Secret)

	cfg = nil
	quiet = true
	require.NoError(t, loadRuntime(cmd))
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
	cfg = nil
}

func TestLoadRuntime_InvalidConfig(t *testing.T) {
	resetFlags(t)
	t.Setenv("SECURELINK_SECRET", "")
	t.Setenv("SECURELINK_CONFIG", "")
	t.Chdir(t.TempDir())

	cmd, _ := newTestCmd()
	err := loadRuntime(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret")
	assert.Nil(t, cfg)
}

func TestRootCommand_Subcommands(t *testing.T) {
	for _, name := range []string{"rewrite", "sign", "verify", "serve", "gateway", "ledger", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	cmd, _, err := rootCmd.Find([]string{"ledger", "merge"})
	require.NoError(t, err)
	assert.Equal(t, "merge", cmd.Name())
}
