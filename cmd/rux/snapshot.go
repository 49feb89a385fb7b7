package main

import (
	"fmt"

	"github.com/aretw0/rux/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage store snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save [id]",
	Short: "Save the default store, with --set assignments applied, as a snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := openEngine(cmd)
		if err != nil {
			return err
		}
		from, _ := cmd.Flags().GetString("from")
		sets, _ := cmd.Flags().GetStringArray("set")
		if err := prepare(cmd, engine, from, sets); err != nil {
			return err
		}

		var id string
		if len(args) > 0 {
			id = args[0]
		}
		id, err = engine.Persist(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshot IDs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := openEngine(cmd)
		if err != nil {
			return err
		}
		ids, err := engine.Snapshots(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [snapshot...]",
	Short: "Check the manifest and snapshots",
	Long: `Compiles the manifest and creates its default store. Every snapshot named
is then loaded into that store; a snapshot that no longer fits the slice
types is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := openEngine(cmd)
		if err != nil {
			tui.Failure(cmd.ErrOrStderr(), "manifest: %v", err)
			return err
		}
		out := cmd.OutOrStdout()
		tui.Success(out, "manifest compiles (%d slice types)", len(engine.Catalog().Types()))

		failed := 0
		for _, id := range args {
			if err := engine.Restore(cmd.Context(), id); err != nil {
				failed++
				tui.Failure(out, "snapshot %s: %v", id, err)
				continue
			}
			tui.Success(out, "snapshot %s", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d snapshots are invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	snapshotSaveCmd.Flags().String("from", "", "Start from this snapshot instead of the defaults")
	snapshotSaveCmd.Flags().StringArray("set", nil, "Assign Slice.field=<json> before saving (repeatable)")
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotListCmd)
	rootCmd.AddCommand(snapshotCmd, validateCmd)
}
