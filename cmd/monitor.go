package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run one monitor sweep: finalize finished jobs and recompute scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.Monitor(ctx); err != nil {
			return err
		}

		summaries := env.Orchestrator.TierSummaries()
		if len(summaries) == 0 {
			fmt.Println("no finished jobs this sweep")
			return nil
		}
		out, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
