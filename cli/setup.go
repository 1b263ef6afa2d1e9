package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/appforge/appforge/pkg/config"
	"github.com/appforge/appforge/pkg/logger"
)

// setupContext loads the env file and configuration named by the root flags
// and returns a context carrying the config and a logger built from it.
func setupContext(cmd *cobra.Command) (context.Context, *config.Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := loadEnvFile(cmd); err != nil {
		return nil, nil, err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("config") {
		if _, err := os.Stat(configFile); err != nil {
			return nil, nil, fmt.Errorf("config file %s not found", configFile)
		}
	}
	cfg, err := config.NewService().Load(ctx, config.NewYAMLSource(configFile))
	if err != nil {
		return nil, nil, err
	}
	if level, err := cmd.Flags().GetString("log-level"); err == nil && level != "" {
		cfg.Runtime.LogLevel = level
	}
	log := logger.NewLogger(&logger.Config{
		Level: logger.LogLevel(cfg.Runtime.LogLevel),
		JSON:  cfg.Runtime.LogJSON,
	})
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	return ctx, cfg, nil
}

// loadEnvFile applies the --env-file flag, falling back to a .env in the
// working directory when present.
func loadEnvFile(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return err
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}
