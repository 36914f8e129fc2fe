package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/mesohops/internal/application"
	"github.com/sawpanic/mesohops/internal/hops"
	"github.com/sawpanic/mesohops/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Initialize and propagate a trajectory, then store the run",
		Args:  cobra.NoArgs,
		RunE:  runTrajectory,
	}
	cmd.Flags().StringArray("kind", nil, "Propagation kind (repeatable, overrides config)")
	addStoreFlags(cmd.Flags())
	return cmd
}

func runTrajectory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer s.Close()

	kinds := cfg.Trajectory.Kinds
	if cmd.Flags().Changed("kind") {
		kinds, _ = cmd.Flags().GetStringArray("kind")
	}

	runner := application.NewRunner(s, nil, log.Logger)
	rec, err := runner.Run(ctx, application.RunRequest{
		Initial: hops.ParseWaveFunction(cfg.Trajectory.Psi0),
		Kinds:   kinds,
	})
	if err != nil {
		return err
	}

	return printJSON(cmd, rec)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
