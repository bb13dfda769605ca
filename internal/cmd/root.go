// Package cmd wires the weft CLI. Commands are thin: they load config,
// assemble the core packages, call one operation, and print. All lifecycle
// semantics live below this package.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weft-sh/weft/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Isolated parallel development environments",
	Long: `Weft provisions and tears down threads: isolated development
environments, each with its own git worktrees, ports, and containers,
identified by a small integer drawn from a bounded pool.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.weft/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.DefaultStateDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WEFT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., WEFT_POOL_MAX_THREADS for pool.max_threads
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
