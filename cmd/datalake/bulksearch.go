package main

import (
	"crypto/sha256"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/datalake"
	"github.com/adamwoolhether/datalake/client/download"
)

var bulkSearchFlags struct {
	fields   []string
	output   string
	checksum string
	progress bool
}

var bulkSearchCmd = &cobra.Command{
	Use:   "bulk-search <query-hash>",
	Short: "Run a bulk search and export the result as CSV",
	Long: `Submit a bulk search for a query hash, wait for it to finish and print
the CSV export, or write it to --output. This can take up to the
configured bulk search timeout.`,
	Args: cobra.ExactArgs(1),
	RunE: runBulkSearch,
}

func init() {
	rootCmd.AddCommand(bulkSearchCmd)

	flags := bulkSearchCmd.Flags()
	flags.StringSliceVar(&bulkSearchFlags.fields, "field", []string{datalake.AtomValueQueryField}, "query field to export, repeatable")
	flags.StringVar(&bulkSearchFlags.output, "output", "", "write the export to this file instead of stdout")
	flags.StringVar(&bulkSearchFlags.checksum, "checksum", "", "expected SHA-256 of the export (requires --output)")
	flags.BoolVar(&bulkSearchFlags.progress, "progress", false, "log write progress (requires --output)")
}

func runBulkSearch(cmd *cobra.Command, args []string) error {
	queryHash := args[0]

	if bulkSearchFlags.output == "" && (bulkSearchFlags.checksum != "" || bulkSearchFlags.progress) {
		return fmt.Errorf("--checksum and --progress require --output")
	}

	dtl, err := rootFlags.newDatalake()
	if err != nil {
		return err
	}

	if bulkSearchFlags.output == "" {
		csv, err := dtl.BulkSearch(cmd.Context(), queryHash, bulkSearchFlags.fields)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), csv)
		return nil
	}

	var opts []download.Option
	if bulkSearchFlags.checksum != "" {
		opts = append(opts, download.WithChecksum(sha256.New(), bulkSearchFlags.checksum))
	}
	if bulkSearchFlags.progress {
		opts = append(opts, download.WithProgress())
	}

	if err := dtl.BulkSearchToFile(cmd.Context(), queryHash, bulkSearchFlags.fields, bulkSearchFlags.output, opts...); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "export written to %s\n", bulkSearchFlags.output)

	return nil
}
