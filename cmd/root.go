// Package cmd defines the command-line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"tgmirror/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "tgmirror",
	Short: "Mirror a public channel feed into Postgres and object storage",
	Long: `tgmirror incrementally synchronizes a public channel's paginated
feed into a relational message store and an object-storage bucket for
media, resuming from a durable cursor between runs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (env vars with the TGMIRROR prefix override)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgPath)
}
