package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redev-labs/complex-scanner/internal/model"
)

var (
	scanTier string
	scanMode string
	scanWait bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Launch a tiered scan over the current population",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tier := model.Tier(scanTier)
		if !model.ValidTier(tier) {
			return eris.Errorf("unknown tier %q (hot, active, dormant)", scanTier)
		}
		mode := model.ScanMode(scanMode)
		if !model.ValidScanMode(mode) {
			return eris.Errorf("unknown mode %q (full, status_check, listings, distress)", scanMode)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ids, err := tierIDs(ctx, env, tier)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Printf("tier %s is empty, nothing to scan\n", tier)
			return nil
		}

		snap, err := env.Orchestrator.Launch(ctx, ids, tier, mode)
		if err != nil {
			return err
		}
		fmt.Printf("job %s launched: %d complexes, tier=%s mode=%s\n",
			snap.JobID, snap.Total, tier, mode)

		if !scanWait {
			return nil
		}

		// Poll until the driver finishes.
		for {
			time.Sleep(2 * time.Second)
			snap, err = env.Orchestrator.Status(ctx, snap.JobID)
			if err != nil {
				return err
			}
			fmt.Printf("  %d/%d complexes, %d fields updated, %d errors\n",
				snap.Progress, snap.Total, snap.FieldsUpdated, snap.ErrorCount)
			if snap.Status.Terminal() {
				break
			}
		}

		if err := env.Orchestrator.Monitor(ctx); err != nil {
			zap.L().Warn("post-scan sweep failed", zap.Error(err))
		}

		fmt.Printf("job %s %s\n", snap.JobID, snap.Status)
		if snap.Status == model.JobStatusError {
			return eris.Errorf("scan failed: %s", snap.LastError)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanTier, "tier", "hot", "tier to scan (hot, active, dormant)")
	scanCmd.Flags().StringVar(&scanMode, "mode", "full", "scan mode (full, status_check, listings, distress)")
	scanCmd.Flags().BoolVar(&scanWait, "wait", true, "wait for the job to finish")
	rootCmd.AddCommand(scanCmd)
}
