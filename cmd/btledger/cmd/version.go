package cmd

import (
	"fmt"

	"github.com/rustyeddy/btledger/backtest"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the engine version recorded in every manifest.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "btledger version %s\n", backtest.EngineVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
