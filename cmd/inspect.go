/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/josephgoksu/MindWing/internal/logging"
	"github.com/josephgoksu/MindWing/internal/ui"
)

var (
	inspectSession string
	inspectLimit   int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Browse memory tiers in a full-screen terminal UI",
	Long: `Open an interactive browser over the memory tiers: working memory, L2
insights, episodes, stale memory, and (with --session) raw dialogue.
Switch tiers with the arrow keys, quit with q.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("inspect needs an interactive terminal; pipe-friendly output is available from 'mindwing search --json'")
		}

		_ = logging.Init(viper.GetBool("verbose"))
		defer logging.Sync()

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = store.Close() }()

		data, err := ui.LoadTierData(cmd.Context(), store, inspectSession, inspectLimit)
		if err != nil {
			return err
		}
		return ui.RunBrowser(data)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectSession, "session", "", "session id for the raw dialogue tab")
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 200, "max rows loaded per tier")
	rootCmd.AddCommand(inspectCmd)
}
