/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/MindWing/internal/export"
	"github.com/josephgoksu/MindWing/internal/logging"
)

var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Snapshot every memory tier to a directory of JSONL files",
	Long: `Write one JSONL file per tier (raw dialogue, insights, working, stale,
episodes, graph nodes and edges) plus a manifest. Embeddings are encoded
base64, so snapshots move between machines and survive schema migrations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		manifest, err := export.Snapshot(cmd.Context(), store, afero.NewOsFs(), args[0])
		if err != nil {
			return fmt.Errorf("export snapshot: %w", err)
		}

		fmt.Printf("✓ Exported to %s\n", args[0])
		printManifestCounts(manifest)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Restore a snapshot directory into the database",
	Long: `Replay a snapshot produced by 'mindwing export'. Rows are inserted in one
transaction per tier; the snapshot's embedding dimensions must match the
configured store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		manifest, err := export.Restore(cmd.Context(), store, afero.NewOsFs(), args[0])
		if err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}

		fmt.Printf("✓ Imported from %s\n", args[0])
		printManifestCounts(manifest)
		return nil
	},
}

func printManifestCounts(manifest *export.Manifest) {
	tiers := make([]string, 0, len(manifest.Counts))
	for tier := range manifest.Counts {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		fmt.Printf("  • %-16s %d rows\n", tier, manifest.Counts[tier])
	}
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
