package main

import (
	"fmt"

	"github.com/aretw0/rux/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [slice]",
	Short: "Export the slice graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the slice types: inheritance edges
are solid, reaction dependencies are dotted and store roots are highlighted.
An optional slice argument is highlighted as the current slice.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := openEngine(cmd)
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if noOverlay, _ := cmd.Flags().GetBool("plain"); !noOverlay {
			roots, err := engine.Roots()
			if err != nil {
				return err
			}
			overlay = &graph.GraphOverlay{Roots: roots}
			if len(args) > 0 {
				overlay.Current = args[0]
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(engine.Catalog(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("plain", false, "Omit the store overlay")
}
