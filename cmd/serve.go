package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tgmirror/internal/api"
	"tgmirror/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server exposing sync triggers and search",
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

		srv := api.NewServer(a.Orchestrator, a.Search, a.Logger)
		a.Logger.Info("http server starting", zap.Int("port", cfg.Server.Port))
		return srv.Serve(ctx, cfg.Server.Port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
