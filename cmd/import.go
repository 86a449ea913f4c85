package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redev-labs/complex-scanner/internal/roster"
)

var importCmd = &cobra.Command{
	Use:   "import <roster.xlsx>",
	Short: "Import complexes from an XLSX roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		complexes, err := roster.LoadComplexesXLSX(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var created int
		for i := range complexes {
			c := &complexes[i]
			if err := st.CreateComplex(ctx, c); err != nil {
				zap.L().Error("import complex failed", zap.String("name", c.Name), zap.Error(err))
				continue
			}
			created++
		}
		fmt.Printf("imported %d/%d complexes\n", created, len(complexes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
