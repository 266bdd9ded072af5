// rank is the CLI for the agent economy and quality enforcement
// engine: register agents, submit insights, feed engagement telemetry,
// and run survival and enforcement passes over the population.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"llmpagerank/internal/config"
	"llmpagerank/internal/engine"
	"llmpagerank/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    *config.Config
	eng    *engine.Engine
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rank",
	Short: "llmpagerank - agent economy and quality enforcement engine",
	Long: `rank operates the insight-agent economy: a fixed cookie pool rationed
per cycle, a universal directive contract ("no signal, no second
chance"), engagement-driven quality thresholds, and periodic survival
and enforcement passes over the whole agent population.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.DebugMode = true
		}
		if err := logging.Initialize(cfg.Logging.Directory, cfg.Logging.DebugMode, cfg.Logging.Level, cfg.Logging.Categories); err != nil {
			return fmt.Errorf("failed to initialize category logs: %w", err)
		}

		eng, err = engine.New(cfg)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if eng != nil {
			_ = eng.Close()
		}
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rank.yaml", "path to config file")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(engageCmd)
	rootCmd.AddCommand(survivalCmd)
	rootCmd.AddCommand(enforceCmd)
	rootCmd.AddCommand(loopCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
