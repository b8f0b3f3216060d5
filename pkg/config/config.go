// Package config loads and validates securelink configuration files.
package config

import (
	"time"

	"github.com/praetorian-inc/securelink/pkg/rewriter"
)

// Config is the top-level configuration file.
type Config struct {
	Parser    ParserConfig    `yaml:"parser"`
	Publisher PublisherConfig `yaml:"publisher"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
}

// ParserConfig describes which resources are protected.
type ParserConfig struct {
	DomainPattern        string        `yaml:"domain_pattern"`
	FolderPattern        string        `yaml:"folder_pattern" validate:"required"`
	FileExtensionPattern string        `yaml:"file_extension_pattern" validate:"required"`
	LogLevel             int           `yaml:"log_level" validate:"min=0,max=3"`
	CaseSensitive        bool          `yaml:"case_sensitive"`
	OnPublishError       string        `yaml:"on_publish_error" validate:"policy"`
	MatchTimeout         time.Duration `yaml:"match_timeout" validate:"min=0"`
}

// Rewriter converts the parser section into a rewriter.Config.
func (p ParserConfig) Rewriter() (rewriter.Config, error) {
	policy, err := rewriter.ParseFailurePolicy(p.OnPublishError)
	if err != nil {
		return rewriter.Config{}, err
	}
	return rewriter.Config{
		DomainPattern:        p.DomainPattern,
		FolderPattern:        p.FolderPattern,
		FileExtensionPattern: p.FileExtensionPattern,
		LogLevel:             p.LogLevel,
		CaseSensitive:        p.CaseSensitive,
		OnPublishError:       policy,
		MatchTimeout:         p.MatchTimeout,
	}, nil
}

// PublisherConfig selects and configures the resource publisher.
type PublisherConfig struct {
	Backend     string        `yaml:"backend" validate:"backend"`
	Secret      string        `yaml:"secret"`
	Prefix      string        `yaml:"prefix" validate:"omitempty,startswith=/"`
	LinkTimeout time.Duration `yaml:"link_timeout" validate:"gt=0"`
	User        string        `yaml:"user"`
	Root        string        `yaml:"root"`
	CacheTTL    time.Duration `yaml:"cache_ttl" validate:"min=0"`
	S3          S3Config      `yaml:"s3"`
	Azure       AzureConfig   `yaml:"azure"`
}

// S3Config configures the S3 presigned URL backend.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	StripPrefix     string `yaml:"strip_prefix"`
}

// AzureConfig configures the Azure Blob SAS backend.
type AzureConfig struct {
	AccountName string `yaml:"account_name"`
	AccountKey  string `yaml:"account_key"`
	Container   string `yaml:"container"`
	ServiceURL  string `yaml:"service_url" validate:"omitempty,url"`
	StripPrefix string `yaml:"strip_prefix"`
}

// LedgerConfig configures the publication ledger. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level      string `yaml:"level" validate:"loglevel"`
	Format     string `yaml:"format" validate:"logformat"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	DocumentRoot string        `yaml:"document_root"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"min=0"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"gt=0"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Parser: ParserConfig{
			FolderPattern:        "fileadmin|typo3temp",
			FileExtensionPattern: "pdf|jpe?g|gif|png|doc|xls|rar|tgz|tar|gz|zip",
			OnPublishError:       "abort",
		},
		Publisher: PublisherConfig{
			Backend:     "signer",
			Prefix:      "/securelink",
			LinkTimeout: time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			MaxBodyBytes: 10 << 20,
		},
	}
}
