package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an Authorization header value",
	Long:  `Authenticate with the configured credentials and print the access token header value.`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	dtl, err := rootFlags.newDatalake()
	if err != nil {
		return err
	}

	token, err := dtl.AccessToken(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)

	return nil
}
