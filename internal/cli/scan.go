package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nevrhq/nevr/internal/cli/ui"
	"github.com/nevrhq/nevr/internal/scanner"
)

var (
	scanCI          bool
	scanNoRedact    bool
	scanInstallHook bool
	scanExclude     []string
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a source tree for accidentally committed secrets",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanInstallHook {
			return installHook()
		}

		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		result, err := scanner.Scan(root, scanner.Options{
			Exclusions: scanExclude,
			Redact:     !scanNoRedact,
		})
		if err != nil {
			return err
		}

		if IsJSON() {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		} else {
			printScanResult(result)
		}

		if result.HasSecrets && scanCI {
			os.Exit(1)
		}
		return nil
	},
}

func printScanResult(result scanner.Result) {
	if !result.HasSecrets {
		ui.Success(fmt.Sprintf("scanned %d files, no secrets found", result.FilesScanned))
		return
	}

	table := ui.NewTable([]string{"file", "line", "severity", "pattern", "match"})
	for _, m := range result.Matches {
		table.AddRow([]string{m.File, fmt.Sprintf("%d", m.Line), m.Severity.String(), m.PatternName, m.Match})
	}
	fmt.Print(table.Render())

	ui.Warning(fmt.Sprintf("found %d potential secrets (critical=%d high=%d medium=%d low=%d)",
		len(result.Matches), result.Summary["critical"], result.Summary["high"], result.Summary["medium"], result.Summary["low"]))
}

func installHook() error {
	path := ".git/hooks/pre-commit"
	if err := os.WriteFile(path, []byte(scanner.PreCommitHookSnippet), 0o755); err != nil {
		return fmt.Errorf("installing pre-commit hook: %w", err)
	}
	ui.Success(fmt.Sprintf("installed pre-commit hook at %s", path))
	return nil
}

func init() {
	scanCmd.Flags().BoolVar(&scanCI, "ci", false, "exit non-zero when secrets are found")
	scanCmd.Flags().BoolVar(&scanNoRedact, "no-redact", false, "print matches unredacted")
	scanCmd.Flags().BoolVar(&scanInstallHook, "install-hook", false, "install the pre-commit scan hook and exit")
	scanCmd.Flags().StringSliceVar(&scanExclude, "exclude", nil, "additional path substrings to exclude")

	rootCmd.AddCommand(scanCmd)
}
