package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nevrhq/nevr/internal/audit"
	"github.com/nevrhq/nevr/internal/cli/ui"
	"github.com/nevrhq/nevr/internal/envfile"
	"github.com/nevrhq/nevr/internal/keyclass"
	"github.com/nevrhq/nevr/internal/pkg/logger"
	"github.com/nevrhq/nevr/internal/vaultcodec"
	"github.com/nevrhq/nevr/internal/vaulterr"
)

const (
	defaultVaultPath = ".nevr-env.vault"
	defaultAuditPath = ".nevr-env.audit.log"
)

var (
	vaultEnvFile      string
	vaultPath         string
	vaultPassphrase   string
	vaultPassFile     string
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Encrypt, decrypt, and inspect the config vault",
}

var vaultPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Encrypt the local env file into the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := resolvePassphrase()
		if err != nil {
			return err
		}

		plaintext, err := os.ReadFile(vaultEnvFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", vaultEnvFile, err)
		}

		var prior *vaultcodec.Metadata
		if existing, err := vaultcodec.Load(vaultPath); err == nil {
			prior = &existing.Metadata
		}

		vault, err := vaultcodec.Encrypt(plaintext, passphrase, prior)
		if err != nil {
			return explainVaultErr(err)
		}
		if err := vaultcodec.Save(vaultPath, vault); err != nil {
			return err
		}

		block := envfile.Parse(string(plaintext))
		_, _ = audit.Append(defaultAuditPath, audit.ActionVaultPush, audit.InferActor(),
			audit.Target{Type: audit.TargetVault, SecretKeys: block.Keys()}, audit.InferContext())

		logger.WithOperation("vault.push").Info("vault pushed", "path", vaultPath, "variables", vault.Metadata.Variables)
		ui.Success(fmt.Sprintf("wrote %s (%d variables)", vaultPath, vault.Metadata.Variables))
		return nil
	},
}

var vaultPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Decrypt the vault into the local env file",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := resolvePassphrase()
		if err != nil {
			return err
		}

		vault, err := vaultcodec.Load(vaultPath)
		if err != nil {
			return explainVaultErr(err)
		}

		plaintext, err := vaultcodec.Decrypt(vault, passphrase)
		if err != nil {
			return explainVaultErr(err)
		}

		if err := os.WriteFile(vaultEnvFile, plaintext, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", vaultEnvFile, err)
		}

		block := envfile.Parse(string(plaintext))
		_, _ = audit.Append(defaultAuditPath, audit.ActionVaultPull, audit.InferActor(),
			audit.Target{Type: audit.TargetVault, SecretKeys: block.Keys()}, audit.InferContext())

		logger.WithOperation("vault.pull").Info("vault pulled", "path", vaultEnvFile, "variables", len(block.Values))
		ui.Success(fmt.Sprintf("wrote %s (%d variables)", vaultEnvFile, len(block.Values)))
		return nil
	},
}

var vaultRotateKeyCmd = &cobra.Command{
	Use:   "rotate-key",
	Short: "Re-encrypt the vault under a freshly generated key",
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPassphrase, err := resolvePassphrase()
		if err != nil {
			return err
		}

		vault, err := vaultcodec.Load(vaultPath)
		if err != nil {
			return explainVaultErr(err)
		}
		plaintext, err := vaultcodec.Decrypt(vault, oldPassphrase)
		if err != nil {
			return explainVaultErr(err)
		}

		newKey, err := vaultcodec.GenerateKey()
		if err != nil {
			return err
		}

		rotated, err := vaultcodec.Encrypt(plaintext, newKey, &vault.Metadata)
		if err != nil {
			return explainVaultErr(err)
		}
		if err := vaultcodec.Save(vaultPath, rotated); err != nil {
			return err
		}

		_, _ = audit.Append(defaultAuditPath, audit.ActionKeyRotate, audit.InferActor(),
			audit.Target{Type: audit.TargetKey}, audit.InferContext())

		ui.Success("vault re-encrypted under a new key")
		fmt.Println(newKey)
		return nil
	},
}

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault metadata without decrypting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, err := vaultcodec.Load(vaultPath)
		if err != nil {
			return explainVaultErr(err)
		}

		table := ui.NewTable([]string{"field", "value"})
		table.AddRow([]string{"version", fmt.Sprintf("%d", vault.Version)})
		table.AddRow([]string{"variables", fmt.Sprintf("%d", vault.Metadata.Variables)})
		table.AddRow([]string{"createdAt", vault.Metadata.CreatedAt.Format("2006-01-02T15:04:05Z")})
		table.AddRow([]string{"updatedAt", vault.Metadata.UpdatedAt.Format("2006-01-02T15:04:05Z")})
		if vault.Metadata.CreatedBy != "" {
			table.AddRow([]string{"createdBy", vault.Metadata.CreatedBy})
		}
		fmt.Print(table.Render())

		if plaintext, err := os.ReadFile(vaultEnvFile); err == nil {
			printCategoryBreakdown(plaintext)
		}
		return nil
	},
}

// printCategoryBreakdown shows how many plaintext-sibling keys fall into
// each keyclass category, without decrypting the vault or printing the
// key names themselves next to their values.
func printCategoryBreakdown(plaintext []byte) {
	block := envfile.Parse(string(plaintext))
	counts := map[keyclass.Category]int{}
	for key := range block.Values {
		counts[keyclass.Classify(key)]++
	}

	table := ui.NewTable([]string{"category", "keys"})
	for _, cat := range []keyclass.Category{
		keyclass.CategoryPassword, keyclass.CategoryAPIKey,
		keyclass.CategoryPrivateKey, keyclass.CategoryConnectionString,
		keyclass.CategoryGeneric,
	} {
		if counts[cat] > 0 {
			table.AddRow([]string{cat.String(), fmt.Sprintf("%d", counts[cat])})
		}
	}
	fmt.Print(table.Render())
}

func resolvePassphrase() (string, error) {
	if vaultPassphrase != "" {
		return vaultPassphrase, nil
	}
	if env := os.Getenv("NEVR_PASSPHRASE"); env != "" {
		return env, nil
	}
	if vaultPassFile != "" {
		data, err := os.ReadFile(vaultPassFile)
		if err != nil {
			return "", fmt.Errorf("reading passphrase file: %w", err)
		}
		return string(trimNewline(data)), nil
	}

	fmt.Print("Vault passphrase: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(raw), nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func explainVaultErr(err error) error {
	var ve *vaulterr.Error
	if e, ok := err.(*vaulterr.Error); ok {
		ve = e
	}
	if ve == nil {
		return err
	}
	return fmt.Errorf("%s (%s)", ve.Error(), vaulterr.Advice(ve.Kind))
}

func init() {
	vaultCmd.PersistentFlags().StringVar(&vaultEnvFile, "env-file", ".env", "path to the plaintext env file")
	vaultCmd.PersistentFlags().StringVar(&vaultPath, "vault", defaultVaultPath, "path to the vault file")
	vaultCmd.PersistentFlags().StringVar(&vaultPassphrase, "passphrase", "", "vault passphrase (prefer NEVR_PASSPHRASE or --passphrase-file)")
	vaultCmd.PersistentFlags().StringVar(&vaultPassFile, "passphrase-file", "", "path to a file containing the vault passphrase")

	vaultCmd.AddCommand(vaultPushCmd, vaultPullCmd, vaultRotateKeyCmd, vaultStatusCmd)
	rootCmd.AddCommand(vaultCmd)
}
