package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ecusim/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [network.yaml]...",
	Short: "Check network files without running them.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			n, err := config.Load(path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d ECUs, %d streams, ok\n",
				path, len(n.ECUs), len(n.Streams))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
