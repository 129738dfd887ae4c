package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tgmirror/internal/app"
	clock "tgmirror/internal/clock/system"
)

var fullSync bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		started := clock.New().Now()
		var failure error
		for evt := range a.Orchestrator.Run(ctx, fullSync) {
			if evt.Err != "" {
				failure = errors.New(evt.Err)
				break
			}
			cmd.Printf("page done: %d persisted this page, %d persisted total, %d skipped total\n",
				len(evt.CurrentIDs), evt.TotalPersisted, len(evt.SkippedIDs))
		}
		elapsed := clock.New().Now().Sub(started).Round(time.Second)
		if failure != nil {
			return fmt.Errorf("sync aborted after %s: %w", elapsed, failure)
		}
		cmd.Printf("sync finished in %s\n", elapsed)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&fullSync, "full", false, "resync the whole channel from post id zero")
	rootCmd.AddCommand(syncCmd)
}
