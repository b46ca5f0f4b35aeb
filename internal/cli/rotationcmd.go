package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nevrhq/nevr/internal/cli/ui"
	"github.com/nevrhq/nevr/internal/rotation"
)

const defaultRotationPath = ".nevr-env.rotation.json"

var (
	rotationPath       string
	rotationKey        string
	rotationMaxAgeDays int
	rotationNotes      string
)

var rotationCmd = &cobra.Command{
	Use:   "rotation",
	Short: "Track when secrets were last rotated",
}

var rotationStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the rotation status of every tracked key",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := rotation.Load(rotationPath)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		table := ui.NewTable([]string{"key", "lastRotated", "maxAgeDays", "status"})
		for _, r := range f.Records {
			table.AddRow([]string{r.Key, r.LastRotated, fmt.Sprintf("%d", r.MaxAgeDays), rotation.ClassifyAt(r, now).String()})
		}
		fmt.Print(table.Render())
		return nil
	},
}

var rotationRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record that a key was rotated just now",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rotationKey == "" {
			return fmt.Errorf("--key is required")
		}
		f, err := rotation.Load(rotationPath)
		if err != nil {
			return err
		}

		f.Upsert(rotation.Record{
			Key:         rotationKey,
			LastRotated: time.Now().UTC().Format(time.RFC3339),
			MaxAgeDays:  rotationMaxAgeDays,
			Notes:       rotationNotes,
		})

		if err := rotation.Save(rotationPath, f); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("recorded rotation for %s", rotationKey))
		return nil
	},
}

func init() {
	rotationCmd.PersistentFlags().StringVar(&rotationPath, "file", defaultRotationPath, "path to the rotation tracking file")

	rotationRecordCmd.Flags().StringVar(&rotationKey, "key", "", "key that was rotated")
	rotationRecordCmd.Flags().IntVar(&rotationMaxAgeDays, "max-age-days", 90, "maximum age in days before the key is considered expired")
	rotationRecordCmd.Flags().StringVar(&rotationNotes, "notes", "", "free-form notes")

	rotationCmd.AddCommand(rotationStatusCmd, rotationRecordCmd)
	rootCmd.AddCommand(rotationCmd)
}
