package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nevrhq/nevr/internal/cli/ui"
	"github.com/nevrhq/nevr/internal/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	jsonOut bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nevr",
	Short: "Encrypted config vault, audit trail, and secret scanner",
	Long: `nevr manages application configuration values across a team.

It stores values in an authenticated-encrypted vault file safe to commit
to version control, keeps a tamper-evident audit log of every vault
operation, and scans source trees for accidentally committed secrets.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := initConfig(); err != nil && verbose {
			ui.Warning(fmt.Sprintf("error loading config: %v", err))
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		if quiet {
			level = slog.LevelError
		}
		logger.Init(logger.Config{Level: level, JSON: jsonOut, Verbose: verbose})
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		_ = initConfig()
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .nevr-env.yaml or $HOME/.nevr-env.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON where supported")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// initConfig reads in config file and NEVR_-prefixed env vars if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".nevr-env")
	}

	viper.SetEnvPrefix("NEVR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		ui.Info(fmt.Sprintf("using config file: %s", viper.ConfigFileUsed()))
	}

	return nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return viper.GetBool("verbose")
}

// IsQuiet returns whether quiet mode is enabled.
func IsQuiet() bool {
	return viper.GetBool("quiet")
}

// IsJSON returns whether machine-readable JSON output was requested.
func IsJSON() bool {
	return viper.GetBool("json")
}
