package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/securelink/pkg/serve"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as streaming rewrite server over stdio",
	Long: `Run securelink as a long-lived streaming server that accepts rewrite
requests via stdin and writes results to stdout using NDJSON format.

The process builds the pattern and publisher once at startup and processes
requests until stdin closes, a close request arrives or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadRuntime(cmd); err != nil {
		return err
	}

	// Set up signal handling
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rw, closeLedger, err := buildRewriter(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	// Create and run server
	srv := serve.NewServer(rw, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
