package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/rux/internal/dto"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var describeCmd = &cobra.Command{
	Use:   "describe [slice]",
	Short: "Describe slice types",
	Long:  `Prints the fields, reducers and reactions of every slice type, or of the named one.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := openEngine(cmd)
		if err != nil {
			return err
		}

		var out any
		if len(args) > 0 {
			t, err := engine.Catalog().Lookup(args[0])
			if err != nil {
				return err
			}
			out = dto.DescribeSlice(t)
		} else {
			out = dto.DescribeCatalog(engine.Catalog())
		}

		format, _ := cmd.Flags().GetString("format")
		return encode(cmd.OutOrStdout(), format, out)
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringP("format", "f", "yaml", "Output format: yaml or json")
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
