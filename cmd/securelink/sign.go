package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/securelink/pkg/publisher"
)

var (
	signUser    string
	signExpires time.Duration
	signBackend bool
)

var signCmd = &cobra.Command{
	Use:   "sign <path>",
	Short: "Issue a signed download link for a resource path",
	Long: `Issue a signed, time-limited download link for a resource path using the
configured secret. With --backend the configured publisher backend is used
instead, so the link may be an S3 or Azure URL and is recorded in the ledger.`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <url>",
	Short: "Check a signed download link",
	Long:  "Check the signature and expiry of a link issued by the signer and show what it grants",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	signCmd.Flags().StringVarP(&signUser, "user", "u", "", "Bind the link to this user")
	signCmd.Flags().DurationVar(&signExpires, "expires", 0, "Link lifetime (default publisher.link_timeout)")
	signCmd.Flags().BoolVar(&signBackend, "backend", false, "Publish through the configured backend")
}

func runSign(cmd *cobra.Command, args []string) error {
	if err := loadRuntime(cmd); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	if signUser != "" {
		ctx = publisher.ContextWithUser(ctx, signUser)
	}
	ctx = publisher.ContextWithSource(ctx, "cli")

	if signBackend {
		st, err := openLedger(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}
		backend, err := publisher.New(ctx, cfg.Publisher, st)
		if err != nil {
			return err
		}
		link, err := backend.Publish(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	}

	pc := cfg.Publisher
	if signExpires > 0 {
		pc.LinkTimeout = signExpires
	}
	signer, err := publisher.SignerFrom(pc)
	if err != nil {
		return err
	}

	link, err := signer.Publish(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := loadRuntime(cmd); err != nil {
		return err
	}
	signer, err := publisher.SignerFrom(cfg.Publisher)
	if err != nil {
		return err
	}

	link, err := signer.Verify(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Valid link\n")
	fmt.Fprintf(out, "  Path: %s\n", link.Path)
	if link.User != "" {
		fmt.Fprintf(out, "  User: %s\n", link.User)
	}
	fmt.Fprintf(out, "  Expires: %s (in %s)\n", link.Expires.UTC().Format(time.RFC3339), time.Until(link.Expires).Round(time.Second))
	return nil
}
