package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/rux/internal/cli"
	"github.com/aretw0/rux/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the store",
	Long: `Creates the default store, optionally restores a snapshot and applies
--set assignments, then prints every root. Reactions run as usual, so derived
fields reflect the assignments.

  rux dump -m camera.yaml --set Camera.bit_depth=12 --format json
  rux dump -m camera.yaml --query '$..bit_depth'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := openEngine(cmd)
		if err != nil {
			return err
		}
		snapshot, _ := cmd.Flags().GetString("snapshot")
		sets, _ := cmd.Flags().GetStringArray("set")
		if err := prepare(cmd, engine, snapshot, sets); err != nil {
			return err
		}

		data, err := engine.DumpStore()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if query, _ := cmd.Flags().GetString("query"); query != "" {
			result, err := cli.Query(data, query)
			if err != nil {
				return err
			}
			if format != "yaml" {
				format = "json"
			}
			return encode(cmd.OutOrStdout(), format, result)
		}
		if format == "auto" {
			format = "json"
			if tui.IsTerminal(os.Stdout) {
				format = "markdown"
			}
		}
		if format != "markdown" {
			return encode(cmd.OutOrStdout(), format, data)
		}

		roots, err := engine.Roots()
		if err != nil {
			return err
		}
		rendered, err := tui.NewRenderer()(markdownStore(roots, data))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringP("format", "f", "auto", "Output format: auto, json, yaml or markdown")
	dumpCmd.Flags().String("snapshot", "", "Restore this snapshot first")
	dumpCmd.Flags().StringArray("set", nil, "Assign Slice.field=<json> before dumping (repeatable)")
	dumpCmd.Flags().StringP("query", "q", "", `Print only the JSONPath match, e.g. "$..bit_depth"`)
}

// markdownStore renders one table per root, fields sorted by name.
func markdownStore(roots []string, data map[string]map[string]any) string {
	var sb strings.Builder
	for _, root := range roots {
		fields := data[root]
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(&sb, "## %s\n\n| field | value |\n| --- | --- |\n", root)
		for _, name := range names {
			raw, err := json.Marshal(fields[name])
			if err != nil {
				raw = []byte(fmt.Sprint(fields[name]))
			}
			fmt.Fprintf(&sb, "| %s | `%s` |\n", name, strings.ReplaceAll(string(raw), "|", "\\|"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
