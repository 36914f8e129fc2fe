package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/mesohops/internal/hops"
)

func newPropagateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Propagate without persisting and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, _ := cmd.Flags().GetStringArray("kind")
			result, err := hops.Propagate(kinds...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringArray("kind", nil, "Propagation kind (repeatable)")
	return cmd
}
