package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath names a configuration file when --config is not given.
	EnvConfigPath = "SECURELINK_CONFIG"
	// EnvSecret overrides publisher.secret.
	EnvSecret = "SECURELINK_SECRET"
	// DefaultFile is looked up in the working directory.
	DefaultFile = "securelink.yaml"
)

// ResolvePath returns the configuration file to load.
// Priority: the flag value, then SECURELINK_CONFIG, then securelink.yaml in
// the working directory. It returns "" when nothing is found.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Load reads path over Default, applies environment overrides and validates
// the result. An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := Decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals YAML into cfg, rejecting unknown keys.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	if secret := os.Getenv(EnvSecret); secret != "" {
		cfg.Publisher.Secret = secret
	}
}
