package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nevrhq/nevr/internal/audit"
	"github.com/nevrhq/nevr/internal/cli/ui"
)

var (
	auditLogPath   string
	auditAction    string
	auditActor     string
	auditKey       string
	auditTail      int
	auditExportFmt string
	auditKeepTail  int
	auditArchive   string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and maintain the vault operation audit log",
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a manual audit entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := cmd.Flags().GetString("action")
		if err != nil || action == "" {
			return fmt.Errorf("--action is required")
		}
		entry, err := audit.Append(auditLogPath, audit.Action(action), audit.InferActor(), audit.Target{Type: audit.TargetConfig}, audit.InferContext())
		if err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("appended entry %s", entry.ID))
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the hash chain of the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := audit.Load(auditLogPath)
		if err != nil {
			return err
		}
		result := audit.Verify(entries)

		if result.Valid {
			ui.Success(fmt.Sprintf("valid: %d entries", result.Entries))
			return nil
		}

		ui.Error(fmt.Sprintf("invalid: %d errors found", len(result.Errors)))
		for _, e := range result.Errors {
			fmt.Printf("  entry %d: %s\n", e.Index, e.Message)
		}
		return fmt.Errorf("audit log failed verification")
	},
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := audit.Load(auditLogPath)
		if err != nil {
			return err
		}

		q := audit.Query{ActorContains: auditActor, HasKey: auditKey, Tail: auditTail}
		if auditAction != "" {
			q.Actions = []audit.Action{audit.Action(auditAction)}
		}
		matched := audit.Apply(entries, q)

		if IsJSON() {
			data, err := json.MarshalIndent(matched, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		table := ui.NewTable([]string{"timestamp", "action", "actor", "keys"})
		for _, e := range matched {
			table.AddRow([]string{e.Timestamp, string(e.Action), e.Actor.Name, fmt.Sprintf("%v", e.Target.SecretKeys)})
		}
		fmt.Print(table.Render())
		return nil
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit log as json, csv, or plaintext",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := audit.Load(auditLogPath)
		if err != nil {
			return err
		}

		var data []byte
		switch auditExportFmt {
		case "json":
			data, err = audit.ExportJSON(entries)
		case "csv":
			data, err = audit.ExportCSV(entries)
		case "plaintext", "":
			data = audit.ExportPlaintext(entries)
		default:
			return fmt.Errorf("unknown export format %q", auditExportFmt)
		}
		if err != nil {
			return err
		}

		fmt.Print(string(data))
		return nil
	},
}

var auditRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Split the audit log into an archive and a fresh tail",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := audit.Rotate(auditLogPath, auditArchive, auditKeepTail); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("rotated into %s, kept last %d entries", auditArchive, auditKeepTail))
		return nil
	},
}

func init() {
	auditCmd.PersistentFlags().StringVar(&auditLogPath, "log", defaultAuditPath, "path to the audit log")

	auditLogCmd.Flags().String("action", "", "action to record")

	auditQueryCmd.Flags().StringVar(&auditAction, "action", "", "filter by action")
	auditQueryCmd.Flags().StringVar(&auditActor, "actor", "", "filter by actor name substring")
	auditQueryCmd.Flags().StringVar(&auditKey, "key", "", "filter by affected key name")
	auditQueryCmd.Flags().IntVar(&auditTail, "tail", 0, "limit to the last N matching entries")

	auditExportCmd.Flags().StringVar(&auditExportFmt, "format", "plaintext", "json, csv, or plaintext")

	auditRotateCmd.Flags().StringVar(&auditArchive, "archive", ".nevr-env.audit.archive.log", "path for the archived head")
	auditRotateCmd.Flags().IntVar(&auditKeepTail, "keep", 100, "number of most recent entries to keep in the main log")

	auditCmd.AddCommand(auditLogCmd, auditVerifyCmd, auditQueryCmd, auditExportCmd, auditRotateCmd)
	rootCmd.AddCommand(auditCmd)
}
