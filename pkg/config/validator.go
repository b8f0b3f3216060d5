package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	logLevels  = []string{"", "debug", "info", "warn", "error"}
	logFormats = []string{"", "console", "json", "text"}
	policies   = []string{"", "abort", "skip"}
	backends   = []string{"", "signer", "s3", "azure"}
)

// Validate checks cfg against its struct tags and the cross-field rules of
// each publisher backend.
func Validate(cfg *Config) error {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", oneOfFold(logLevels))
	_ = validate.RegisterValidation("logformat", oneOfFold(logFormats))
	_ = validate.RegisterValidation("policy", oneOfFold(policies))
	_ = validate.RegisterValidation("backend", oneOfFold(backends))

	if err := validate.Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' rule (value %v)", e.Namespace(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	return validateBackend(&cfg.Publisher)
}

func validateBackend(p *PublisherConfig) error {
	switch strings.ToLower(p.Backend) {
	case "", "signer":
		if p.Secret == "" {
			return fmt.Errorf("invalid config: publisher.secret is required for the signer backend (or set %s)", EnvSecret)
		}
	case "s3":
		if p.S3.Bucket == "" {
			return errors.New("invalid config: publisher.s3.bucket is required for the s3 backend")
		}
	case "azure":
		if p.Azure.AccountName == "" || p.Azure.AccountKey == "" || p.Azure.Container == "" {
			return errors.New("invalid config: publisher.azure needs account_name, account_key and container")
		}
	}
	return nil
}

func oneOfFold(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := strings.ToLower(fl.Field().String())
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}
}
