package cli

import (
	"fmt"
	"os"
	"text/template"

	"github.com/spf13/cobra"
)

var ciTarget string

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "Emit CI pipeline snippets that run nevr scan and vault pull",
}

var ciEmitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Render a static CI config snippet for the chosen target",
	RunE: func(cmd *cobra.Command, args []string) error {
		tmplText, ok := ciTemplates[ciTarget]
		if !ok {
			return fmt.Errorf("unknown --target %q (want github or gitlab)", ciTarget)
		}

		tmpl, err := template.New("ci").Parse(tmplText)
		if err != nil {
			return err
		}
		return tmpl.Execute(os.Stdout, struct {
			VaultPath string
			EnvFile   string
		}{
			VaultPath: defaultVaultPath,
			EnvFile:   ".env",
		})
	},
}

// ciTemplates are static YAML skeletons; this is pure text/template
// rendering over a string constant, not schema/migration logic.
var ciTemplates = map[string]string{
	"github": `name: nevr
on: [push, pull_request]
jobs:
  config-check:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Scan for leaked secrets
        run: nevr scan --ci
      - name: Pull vault into env file
        run: nevr vault pull --vault {{.VaultPath}} --env-file {{.EnvFile}}
        env:
          NEVR_PASSPHRASE: ${{"{{"}} secrets.NEVR_PASSPHRASE {{"}}"}}
`,
	"gitlab": `config-check:
  image: golang:latest
  script:
    - nevr scan --ci
    - nevr vault pull --vault {{.VaultPath}} --env-file {{.EnvFile}}
  variables:
    NEVR_PASSPHRASE: ${CI_NEVR_PASSPHRASE}
`,
}

func init() {
	ciEmitCmd.Flags().StringVar(&ciTarget, "target", "github", "CI platform to render a snippet for (github, gitlab)")
	ciCmd.AddCommand(ciEmitCmd)
	rootCmd.AddCommand(ciCmd)
}
