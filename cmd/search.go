package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"tgmirror/internal/app"
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find mirrored messages containing the given text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Search.Find(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(results) == 0 {
			cmd.Println("no matches")
			return nil
		}
		for _, r := range results {
			cmd.Printf("%d  %s\n", r.SourceID, r.PostURL)
			cmd.Printf("    %s\n", firstLine(r.Text))
			for _, m := range r.Media {
				cmd.Printf("    [%s] %s\n", m.Kind, m.URL)
			}
		}
		return nil
	},
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
