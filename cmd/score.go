package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/report"
)

var (
	scoreAll  bool
	scoreXLSX bool
)

var scoreCmd = &cobra.Command{
	Use:   "score [region-id...]",
	Short: "Score regions and rank them by investment attractiveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		regionIDs := args
		if scoreAll {
			regionIDs = regionIDs[:0]
			for _, r := range env.Static.Regions {
				regionIDs = append(regionIDs, r.ID)
			}
		}
		if len(regionIDs) == 0 {
			return fmt.Errorf("no regions given; pass region ids or --all")
		}

		run, err := env.Pipeline.RunBatch(ctx, regionIDs)
		if err != nil {
			return err
		}

		if err := report.WriteConsole(os.Stdout, run); err != nil {
			return err
		}

		if scoreXLSX {
			name := fmt.Sprintf("scores-%s.xlsx", time.Now().Format("2006-01-02"))
			path := filepath.Join(cfg.Report.OutputDir, name)
			if err := report.WriteXLSX(run, path); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", path))
		}
		return nil
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreAll, "all", false, "score every region in the registry")
	scoreCmd.Flags().BoolVar(&scoreXLSX, "xlsx", false, "also write an XLSX report")
	rootCmd.AddCommand(scoreCmd)
}
