package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/precedent/internal/app"
	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/wire"
)

var (
	envFile    string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "precedent-cli",
	Short: "precedent-cli is the command-line interface for Precedent.",
	Long: `A CLI for the Precedent review engine. It reviews patches locally, ingests
past reviews into the vector store, and records or reports developer feedback.`,
	SilenceUsage: true,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file with configuration")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	if err := viper.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
}

// initConfig reads in the env file and ENV variables if set.
func initConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if envFile == "" {
		return
	}
	viper.SetConfigFile(envFile)
	viper.SetConfigType("env")
	if err := viper.ReadInConfig(); err != nil {
		slog.Error("failed to read env file", "path", envFile, "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and wires the services. Logs go to
// stderr so command output stays parseable.
func initializeApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	application, cleanup, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize app services: %w", err)
	}
	return application, cleanup, nil
}
