package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/securelink/pkg/gateway"
	"github.com/praetorian-inc/securelink/pkg/publisher"
)

var gatewayAddr string

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the HTTP gateway",
	Long: `Run the HTTP gateway. It rewrites documents posted to /rewrite and serves
signed download links under the publisher prefix from the document root.
/healthz and /metrics expose health and Prometheus counters.`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().StringVar(&gatewayAddr, "addr", "", "Listen address (default server.addr)")
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
	if err := loadRuntime(cmd); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rw, closeLedger, err := buildRewriter(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	srv := gateway.New(rw, gatewaySigner(),
		gateway.WithLogger(logger),
		gateway.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		gateway.WithReadTimeout(cfg.Server.ReadTimeout),
	)

	addr := gatewayAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return srv.ListenAndServe(ctx, addr)
}

// gatewaySigner returns the signer downloads are verified with, or nil when
// no secret is configured. Files are served from publisher.root, falling
// back to server.document_root.
func gatewaySigner() *publisher.Signer {
	pc := cfg.Publisher
	if pc.Root == "" {
		pc.Root = cfg.Server.DocumentRoot
	}
	if pc.Secret == "" || pc.Root == "" {
		logger.Warn().Msg("no secret or document root configured; signed downloads disabled")
		return nil
	}
	signer, err := publisher.SignerFrom(pc)
	if err != nil {
		logger.Warn().Err(err).Msg("signed downloads disabled")
		return nil
	}
	return signer
}
