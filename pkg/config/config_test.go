package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/praetorian-inc/securelink/pkg/rewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "securelink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
parser:
  domain_pattern: "https://example.com"
  folder_pattern: "protected/folder"
  file_extension_pattern: "pdf|zip"
  log_level: 2
  on_publish_error: skip
  match_timeout: 2s
publisher:
  secret: s3cret
  link_timeout: 10m
ledger:
  path: ":memory:"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", cfg.Parser.DomainPattern)
	assert.Equal(t, "protected/folder", cfg.Parser.FolderPattern)
	assert.Equal(t, 2, cfg.Parser.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Parser.MatchTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Publisher.LinkTimeout)
	assert.Equal(t, ":memory:", cfg.Ledger.Path)

	// Defaults survive for keys the file does not set.
	assert.Equal(t, "/securelink", cfg.Publisher.Prefix)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	rc, err := cfg.Parser.Rewriter()
	require.NoError(t, err)
	assert.Equal(t, rewriter.SkipTag, rc.OnPublishError)
	assert.Equal(t, "pdf|zip", rc.FileExtensionPattern)
}

func TestLoad_SecretFromEnv(t *testing.T) {
	t.Setenv(EnvSecret, "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Publisher.Secret)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv(EnvSecret, "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publisher.secret")
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "parser:\n  folder: x\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Setenv(EnvSecret, "x")
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Parser, cfg.Parser)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with secret", mutate: func(c *Config) {}},
		{name: "log level out of range", mutate: func(c *Config) { c.Parser.LogLevel = 4 }, wantErr: "LogLevel"},
		{name: "missing folder", mutate: func(c *Config) { c.Parser.FolderPattern = "" }, wantErr: "FolderPattern"},
		{name: "bad policy", mutate: func(c *Config) { c.Parser.OnPublishError = "retry" }, wantErr: "policy"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "loglevel"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "logformat"},
		{name: "bad backend", mutate: func(c *Config) { c.Publisher.Backend = "gcs" }, wantErr: "backend"},
		{name: "relative prefix", mutate: func(c *Config) { c.Publisher.Prefix = "dl" }, wantErr: "Prefix"},
		{name: "zero link timeout", mutate: func(c *Config) { c.Publisher.LinkTimeout = 0 }, wantErr: "LinkTimeout"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Publisher.Backend = "s3" }, wantErr: "bucket"},
		{name: "s3 with bucket", mutate: func(c *Config) {
			c.Publisher.Backend = "s3"
			c.Publisher.S3.Bucket = "docs"
		}},
		{name: "azure incomplete", mutate: func(c *Config) {
			c.Publisher.Backend = "azure"
			c.Publisher.Azure.AccountName = "acct"
		}, wantErr: "azure"},
		{name: "uppercase values", mutate: func(c *Config) {
			c.Log.Level = "DEBUG"
			c.Parser.OnPublishError = "Skip"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Publisher.Secret = "s"
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, "", ResolvePath(""))

	require.NoError(t, os.WriteFile(DefaultFile, []byte("{}"), 0o644))
	assert.Equal(t, DefaultFile, ResolvePath(""))

	t.Setenv(EnvConfigPath, "/etc/securelink.yaml")
	assert.Equal(t, "/etc/securelink.yaml", ResolvePath(""))

	assert.Equal(t, "flag.yaml", ResolvePath("flag.yaml"))
}

func TestParserConfig_RewriterBadPolicy(t *testing.T) {
	_, err := ParserConfig{OnPublishError: "later"}.Rewriter()
	assert.Error(t, err)
}
