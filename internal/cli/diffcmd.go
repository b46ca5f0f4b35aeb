package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nevrhq/nevr/internal/schemadiff"
)

var diffRenameThreshold float64

var diffCmd = &cobra.Command{
	Use:   "diff <old-schema.json> <new-schema.json>",
	Short: "Diff two schema descriptions and classify breaking changes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldSchema, err := readSchemaFile(args[0])
		if err != nil {
			return err
		}
		newSchema, err := readSchemaFile(args[1])
		if err != nil {
			return err
		}

		result := schemadiff.Diff(oldSchema, newSchema, schemadiff.Options{RenameThreshold: diffRenameThreshold})

		if IsJSON() {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		} else {
			fmt.Print(schemadiff.RenderGuide(result))
		}

		if result.IsBreaking {
			os.Exit(1)
		}
		return nil
	},
}

func readSchemaFile(path string) (schemadiff.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var schema schemadiff.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return schema, nil
}

func init() {
	diffCmd.Flags().Float64Var(&diffRenameThreshold, "rename-threshold", 0.7, "minimum similarity to treat a removed/added pair as a rename")
	rootCmd.AddCommand(diffCmd)
}
