package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/datalake"
)

var lookupFlags struct {
	treatHashesLike string
	file            string
}

var lookupCmd = &cobra.Command{
	Use:   "lookup [value]...",
	Short: "Bulk lookup atom values as CSV",
	Long: `Classify and look up atom values, printing a single CSV document.
Values come from the arguments and, with --file, one per line from a file.`,
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVar(&lookupFlags.treatHashesLike, "treat-hashes-like", datalake.TreatHashesAsFile, "atom type given to hashes (file|certificate)")
	lookupCmd.Flags().StringVar(&lookupFlags.file, "file", "", "read additional values from this file, one per line")
}

func runLookup(cmd *cobra.Command, args []string) error {
	values := append([]string(nil), args...)
	if lookupFlags.file != "" {
		fromFile, err := readValues(lookupFlags.file)
		if err != nil {
			return err
		}
		values = append(values, fromFile...)
	}

	if len(values) == 0 {
		return fmt.Errorf("no values to look up (pass them as arguments or with --file)")
	}

	dtl, err := rootFlags.newDatalake()
	if err != nil {
		return err
	}

	csv, err := dtl.BulkLookup(cmd.Context(), values, lookupFlags.treatHashesLike)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), csv)

	return nil
}

func readValues(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening values file: %w", err)
	}
	defer f.Close()

	var values []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v := strings.TrimSpace(scanner.Text()); v != "" {
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading values file: %w", err)
	}

	return values, nil
}
