package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/datalake"
)

var extractFlags struct {
	treatHashesLike string
}

var extractCmd = &cobra.Command{
	Use:   "extract <value>...",
	Short: "Classify atom values",
	Long:  `Print the atom type of each recognised value, one "value<TAB>type" per line.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractFlags.treatHashesLike, "treat-hashes-like", datalake.TreatHashesAsFile, "atom type given to hashes (file|certificate)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	dtl, err := rootFlags.newDatalake()
	if err != nil {
		return err
	}

	types, err := dtl.ExtractAtomType(cmd.Context(), args, extractFlags.treatHashesLike)
	if err != nil {
		return err
	}

	values := make([]string, 0, len(types))
	for v := range types {
		values = append(values, v)
	}
	slices.Sort(values)

	out := cmd.OutOrStdout()
	for _, v := range values {
		fmt.Fprintf(out, "%s\t%s\n", v, types[v])
	}

	return nil
}
