package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/mesohops/internal/store"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print a stored run, or the latest runs when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := store.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer s.Close()

			if len(args) == 1 {
				rec, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("run %s: %w", args[0], err)
				}
				return printJSON(cmd, rec)
			}

			limit, _ := cmd.Flags().GetInt("limit")
			recs, err := s.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, recs)
		},
	}
	cmd.Flags().Int("limit", 10, "Number of runs to list")
	addStoreFlags(cmd.Flags())
	return cmd
}
