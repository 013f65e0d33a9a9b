package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voicetype/internal/domain"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List supported trigger key names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range domain.TriggerKeyNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
