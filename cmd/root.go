package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redev-labs/complex-scanner/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "complex-scanner",
	Short: "Tiered scan scheduler for urban-renewal investment targets",
	Long:  "Tracks urban-renewal complexes, schedules tiered research scans, enriches them through multiple AI research engines, and maintains investment and seller-stress scores.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
