package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/securelink/pkg/config"
	"github.com/praetorian-inc/securelink/pkg/logging"
	"github.com/praetorian-inc/securelink/pkg/publisher"
	"github.com/praetorian-inc/securelink/pkg/rewriter"
	"github.com/praetorian-inc/securelink/pkg/store"
)

var (
	configPath string
	verbose    bool
	quiet      bool

	// Loaded once per invocation by loadRuntime.
	cfg    *config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "securelink",
	Short: "Securelink - rewrite protected resource links in HTML",
	Long: `Securelink finds links to protected files in HTML documents and replaces
them with published URLs: HMAC-signed, time-limited download links served by
the securelink gateway, S3 presigned URLs or Azure blob SAS URLs.

Only href and src attributes of <a>, <img>, <link>, <source> and <video> tags
are touched; everything else in the document is copied through unchanged.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadRuntime(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default $SECURELINK_CONFIG or ./securelink.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadRuntime loads the configuration and builds the logger. It is a no-op
// once cfg is set, which lets tests inject a configuration directly.
func loadRuntime(cmd *cobra.Command) error {
	if cfg != nil {
		return nil
	}

	loaded, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		return err
	}

	b := logging.NewBuilder().WithConfig(loaded.Log).WithConsole(cmd.ErrOrStderr())
	switch {
	case quiet:
		b = b.WithLevel(zerolog.ErrorLevel)
	case verbose:
		b = b.WithLevel(zerolog.DebugLevel)
	}
	l, err := b.Build()
	if err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}

	cfg, logger = loaded, l
	logger.Debug().Str("backend", cfg.Publisher.Backend).Msg("configuration loaded")
	return nil
}

// openLedger opens the configured ledger. It returns a nil Store when the
// ledger is disabled.
func openLedger(ctx context.Context) (store.Store, error) {
	if cfg.Ledger.Path == "" {
		return nil, nil
	}
	st, err := store.New(ctx, store.Config{Path: cfg.Ledger.Path})
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return st, nil
}

// buildRewriter wires the configured publisher, and the ledger when
// enabled, into a Rewriter. The returned close function releases the ledger.
func buildRewriter(ctx context.Context) (*rewriter.Rewriter, func() error, error) {
	noop := func() error { return nil }

	st, err := openLedger(ctx)
	if err != nil {
		return nil, noop, err
	}
	closeFn := noop
	if st != nil {
		closeFn = st.Close
	}

	backend, err := publisher.New(ctx, cfg.Publisher, st)
	if err != nil {
		closeFn()
		return nil, noop, fmt.Errorf("creating publisher: %w", err)
	}

	rwCfg, err := cfg.Parser.Rewriter()
	if err != nil {
		closeFn()
		return nil, noop, err
	}

	rw, err := rewriter.New(rwCfg, backend, rewriter.WithLogger(logger))
	if err != nil {
		closeFn()
		return nil, noop, fmt.Errorf("creating rewriter: %w", err)
	}

	logger.Debug().Str("publisher", backend.Name()).Msg("rewriter ready")
	return rw, closeFn, nil
}

// commandContext returns the command's context, which is nil when the run
// function is invoked directly rather than through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
