package main

import (
	"log/slog"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/internal/cli"
	"github.com/spf13/cobra"
)

// openEngine builds the engine selected by the persistent flags.
func openEngine(cmd *cobra.Command, opts ...rux.Option) (*rux.Engine, *slog.Logger, error) {
	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := cli.NewEngine(cmd.Context(), cfg, logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine, logger, nil
}

// prepare restores a snapshot when id is set, then applies the --set flags.
func prepare(cmd *cobra.Command, engine *rux.Engine, snapshot string, sets []string) error {
	if snapshot != "" {
		if err := engine.Restore(cmd.Context(), snapshot); err != nil {
			return err
		}
	}
	assignments := make([]cli.Assignment, 0, len(sets))
	for _, s := range sets {
		a, err := cli.ParseAssignment(s)
		if err != nil {
			return err
		}
		assignments = append(assignments, a)
	}
	return cli.Apply(engine, assignments)
}
