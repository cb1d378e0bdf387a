// Package main provides the scenario risk CLI and service entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/scenario-risk/internal/config"
	"github.com/yourusername/scenario-risk/internal/kpi"
	"github.com/yourusername/scenario-risk/internal/logger"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	logLevel   string
	cfg        *config.Config
	appLog     *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (defaults apply when missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newRunCmd(), newValidateCmd(), newServeCmd(), newVersionCmd())
}

var rootCmd = &cobra.Command{
	Use:           "simulate",
	Short:         "Monte Carlo scenario risk simulation",
	Long:          `Runs seeded Monte Carlo simulations over business scenarios and reports KPI risk statistics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return loadConfig(cmd.Context())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context) error {
	path := configFile
	if path == "" {
		path = os.Getenv("RISKSIM_CONFIG_PATH")
	}
	loaded, err := config.LoadWithDefaults(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.LoadSecretsFromAWS(ctx, loaded); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if logLevel != "" {
		loaded.App.LogLevel = logLevel
	}
	if err := config.Validate(loaded); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = loaded
	appLog = logger.NewLogger(cfg.App.LogLevel)
	return nil
}

func newEngine(opts ...simulation.Option) (*simulation.Engine, error) {
	return simulation.NewEngine(cfg.Engine.ToSimulationConfig(), appLog, opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "simulate %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "kpi types: %v\n", kpi.NewRegistry().Types())
		},
	}
}
