package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/securelink/pkg/store"
	"github.com/praetorian-inc/securelink/pkg/types"
)

var (
	ledgerPath   string
	ledgerFormat string
	ledgerFilter string
	ledgerSource string
	ledgerSince  time.Duration
	ledgerLimit  int
	mergeOutput  string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the publication ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded publications, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

var ledgerMergeCmd = &cobra.Command{
	Use:   "merge <source1> [source2...]",
	Short: "Merge ledgers into one",
	Long: `Merge one or more ledgers into an output ledger.

This is useful for combining the ledgers of several hosts that publish
the same site. Duplicate publications are only stored once.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLedgerMerge,
}

func init() {
	ledgerCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "Ledger path or postgres:// URL (default ledger.path)")

	ledgerListCmd.Flags().StringVar(&ledgerFormat, "format", "table", "Output format: table, json")
	ledgerListCmd.Flags().StringVar(&ledgerFilter, "path", "", "Only this resource path")
	ledgerListCmd.Flags().StringVar(&ledgerSource, "source", "", "Only publications from this document")
	ledgerListCmd.Flags().DurationVar(&ledgerSince, "since", 0, "Only publications newer than this")
	ledgerListCmd.Flags().IntVar(&ledgerLimit, "limit", 0, "Maximum number of publications (0 = all)")

	ledgerMergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Output ledger (default ledger.path)")

	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerMergeCmd)
}

func resolveLedgerPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.Ledger.Path != "" {
		return cfg.Ledger.Path, nil
	}
	return "", fmt.Errorf("no ledger configured: set ledger.path or pass --ledger")
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	if err := loadRuntime(cmd); err != nil {
		return err
	}
	path, err := resolveLedgerPath(ledgerPath)
	if err != nil {
		return err
	}
	if path == ":memory:" {
		return fmt.Errorf("cannot list an in-memory ledger")
	}

	ctx := commandContext(cmd)
	s, err := store.New(ctx, store.Config{Path: path})
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer s.Close()

	f := store.Filter{Path: ledgerFilter, Source: ledgerSource, Limit: ledgerLimit}
	if ledgerSince > 0 {
		f.Since = time.Now().Add(-ledgerSince)
	}
	pubs, err := s.GetPublications(ctx, f)
	if err != nil {
		return fmt.Errorf("retrieving publications: %w", err)
	}

	switch ledgerFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		if pubs == nil {
			pubs = []*types.Publication{}
		}
		return encoder.Encode(pubs)
	case "table":
		return printPublications(cmd, pubs)
	default:
		return fmt.Errorf("unknown output format: %s", ledgerFormat)
	}
}

func printPublications(cmd *cobra.Command, pubs []*types.Publication) error {
	if len(pubs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No publications.")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBLISHED\tBACKEND\tPATH\tSOURCE\tSTATUS")
	for _, p := range pubs {
		status := "valid"
		if p.Expired(now) {
			status = "expired"
		}
		source := p.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.PublishedAt.Local().Format(time.DateTime), p.Backend, p.Path, source, status)
	}
	return tw.Flush()
}

func runLedgerMerge(cmd *cobra.Command, args []string) error {
	if err := loadRuntime(cmd); err != nil {
		return err
	}
	destPath, err := resolveLedgerPath(mergeOutput)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	dest, err := store.New(ctx, store.Config{Path: destPath})
	if err != nil {
		return fmt.Errorf("opening %s: %w", destPath, err)
	}
	defer dest.Close()

	var sources []store.Store
	defer func() {
		for _, s := range sources {
			s.Close()
		}
	}()
	for _, path := range args {
		if path == destPath {
			return fmt.Errorf("source %s is also the output ledger", path)
		}
		s, err := store.New(ctx, store.Config{Path: path})
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		sources = append(sources, s)
	}

	stats, err := store.Merge(ctx, dest, sources...)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merge complete:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Sources processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(cmd.OutOrStdout(), "  Publications merged: %d\n", stats.PublicationsMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Duplicates skipped: %d\n", stats.PublicationsSkipped)
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", destPath)

	return nil
}
