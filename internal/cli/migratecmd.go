package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nevrhq/nevr/internal/audit"
	"github.com/nevrhq/nevr/internal/cli/ui"
	"github.com/nevrhq/nevr/internal/envfile"
	"github.com/nevrhq/nevr/internal/migration"
	"github.com/nevrhq/nevr/internal/rotation"
)

var (
	migrateEnvFile string
	migratePlan    string
	migrateBackup  string
	migrateYes     bool

	addRuleKey          string
	addRuleDefault      string
	addRuleMaxAgeDays   int
	addRuleRotationFile string
	addRuleNoRotation   bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Preview, apply, or roll back a rename/transform/add/delete plan",
}

func loadEnvMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return envfile.Parse(string(data)).Values, nil
}

var migratePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what a plan would change without writing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := readPlanFile(migratePlan)
		if err != nil {
			return err
		}
		mapping, err := loadEnvMapping(migrateEnvFile)
		if err != nil {
			return err
		}

		result := migration.Preview(plan, mapping)
		printMigrationResult(result)
		return nil
	},
}

var migrateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a plan to the env file, writing a backup first",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := readPlanFile(migratePlan)
		if err != nil {
			return err
		}
		mapping, err := loadEnvMapping(migrateEnvFile)
		if err != nil {
			return err
		}

		if !migrateYes && !ui.PromptYesNo(fmt.Sprintf("apply %d rule(s) to %s", len(plan.Rules), migrateEnvFile), false) {
			ui.Info("aborted")
			return nil
		}

		result, err := migration.Apply(plan, mapping, migrateEnvFile, true, false, func(m map[string]string) string {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			return envfile.SerializeMap(m, keys)
		})
		if err != nil {
			return err
		}
		printMigrationResult(result)

		_, _ = audit.Append(defaultAuditPath, audit.ActionConfigChange, audit.InferActor(),
			audit.Target{Type: audit.TargetConfig}, audit.InferContext())

		return nil
	},
}

// migrateAddRuleCmd appends an "add" rule to the plan file for a newly
// introduced key, seeding its default max age from the rotation tracker
// (falling back to a prior record's max age if one exists, or 90 days
// otherwise) and records the key's rotation baseline so it is tracked
// from the moment it enters the plan.
var migrateAddRuleCmd = &cobra.Command{
	Use:   "add-rule",
	Short: "Append an add rule for a new key, seeding its rotation defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addRuleKey == "" {
			return fmt.Errorf("--key is required")
		}

		rf, err := rotation.Load(addRuleRotationFile)
		if err != nil {
			return err
		}

		maxAgeDays := addRuleMaxAgeDays
		if maxAgeDays == 0 {
			if existing, ok := rf.FindRecord(addRuleKey); ok {
				maxAgeDays = existing.MaxAgeDays
			} else {
				maxAgeDays = 90
			}
		}

		dp, err := loadDiskPlan(migratePlan)
		if err != nil {
			return err
		}
		dp.Rules = append(dp.Rules, diskRule{
			ID:         fmt.Sprintf("add-%s", addRuleKey),
			Kind:       "add",
			AddKey:     addRuleKey,
			AddDefault: addRuleDefault,
		})
		if err := saveDiskPlan(migratePlan, dp); err != nil {
			return err
		}

		if !addRuleNoRotation {
			rf.Upsert(rotation.Record{
				Key:         addRuleKey,
				LastRotated: time.Now().UTC().Format(time.RFC3339),
				MaxAgeDays:  maxAgeDays,
			})
			if err := rotation.Save(addRuleRotationFile, rf); err != nil {
				return err
			}
		}

		ui.Success(fmt.Sprintf("added rule for %s to %s (maxAgeDays=%d)", addRuleKey, migratePlan, maxAgeDays))
		return nil
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the env file from a migration backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateBackup == "" {
			return fmt.Errorf("--backup is required")
		}
		if err := migration.Rollback(migrateBackup, migrateEnvFile); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("restored %s from %s", migrateEnvFile, migrateBackup))
		return nil
	},
}

func printMigrationResult(result migration.Result) {
	fmt.Printf("applied=%d skipped=%d faults=%d\n", result.Applied, result.Skipped, len(result.Faults))
	for i, c := range result.Changes {
		fmt.Println(ui.RuleProgress(i+1, len(result.Changes), fmt.Sprintf("[%s] %s", kindName(c.Kind), c.RuleID)))
	}
	for _, f := range result.Faults {
		ui.Error(fmt.Sprintf("rule %s failed: %s", f.RuleID, f.ErrorMessage))
	}
	if result.BackupPath != "" {
		ui.Info(fmt.Sprintf("backup written to %s", result.BackupPath))
	}
}

func kindName(k migration.Kind) string {
	switch k {
	case migration.KindRename:
		return "rename"
	case migration.KindTransform:
		return "transform"
	case migration.KindSplit:
		return "split"
	case migration.KindMerge:
		return "merge"
	case migration.KindDelete:
		return "delete"
	case migration.KindAdd:
		return "add"
	default:
		return "unknown"
	}
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateEnvFile, "env-file", ".env", "path to the env file to migrate")
	migrateCmd.PersistentFlags().StringVar(&migratePlan, "plan", "migration-plan.json", "path to the migration plan file")

	migrateApplyCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "apply without interactive confirmation")

	migrateRollbackCmd.Flags().StringVar(&migrateBackup, "backup", "", "path to the backup file to restore")

	migrateAddRuleCmd.Flags().StringVar(&addRuleKey, "key", "", "key the new rule adds")
	migrateAddRuleCmd.Flags().StringVar(&addRuleDefault, "default", "", "literal default value for the new key")
	migrateAddRuleCmd.Flags().IntVar(&addRuleMaxAgeDays, "max-age-days", 0, "rotation max age in days (0 = reuse the tracker's existing value, or 90)")
	migrateAddRuleCmd.Flags().StringVar(&addRuleRotationFile, "rotation-file", defaultRotationPath, "path to the rotation tracking file")
	migrateAddRuleCmd.Flags().BoolVar(&addRuleNoRotation, "no-rotation", false, "don't record a rotation baseline for the new key")

	migrateCmd.AddCommand(migratePreviewCmd, migrateApplyCmd, migrateRollbackCmd, migrateAddRuleCmd)
	rootCmd.AddCommand(migrateCmd)
}
