package cli

import (
	"os"

	"github.com/spf13/cobra"

	"skillquiz-service/internal/config"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI. Variables from .env are loaded first so they can seed flag defaults.
func Execute() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "skillquiz",
		Short:         "Technical skill quiz service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewCategoriesCmd())
	cmd.AddCommand(NewPlayCmd(&configPath))
	return cmd
}
