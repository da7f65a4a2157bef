package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Lscheinman/odata/internal/config"
	"github.com/Lscheinman/odata/internal/observability"
)

// Version is overridden at build time via -ldflags.
var Version = "0.2.0-dev"

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "orbat",
	Short:   "Query force-element hierarchies, relationship graphs and readiness from an SAP gateway.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		cfg := config.Get()
		if err := cfg.Validate(); err != nil {
			observability.InitializeLogger(cfg.Logger)
			return fmt.Errorf("invalid configuration: %w", err)
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Configuration loaded",
			zap.String("gateway", cfg.Gateway.BaseURL),
			zap.String("version", Version))
		return nil
	},
}

func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("orbat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/orbat")
		}
	}

	v.SetEnvPrefix("ORBAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, env and flags can carry everything.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return config.Load(v)
}

// Execute runs the root command. It accepts a context passed from main.go for
// graceful shutdown.
func Execute(ctx context.Context) error {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./orbat.yaml)")

	rootCmd.AddCommand(newSetsCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newElementCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newGraphCmd())
	rootCmd.AddCommand(newReadinessCmd())

	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Context cancellation during shutdown is not a command failure.
		if ctx.Err() == nil {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}
