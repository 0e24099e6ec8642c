package main

import (
	"fmt"

	domrepo "SignalBot/internal/domain/repository"

	"github.com/spf13/cobra"
)

// expirationCmd prints the expiration recommended for a timeframe
var expirationCmd = &cobra.Command{
	Use:   "expiration TIMEFRAME",
	Short: "Print the trade expiration for a timeframe code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tf := args[0]
		res := map[string]interface{}{
			"timeframe": tf,
			"label":     domrepo.ExpirationLabel(tf),
			"minutes":   domrepo.NormalizeTimeframe(tf).ExpirationMinutes(),
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d min)\n", tf, res["label"], res["minutes"])
		return err
	},
}

func init() {
	rootCmd.AddCommand(expirationCmd)
}
