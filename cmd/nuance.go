/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/internal/logging"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/internal/nuance"
	"github.com/josephgoksu/MindWing/internal/ui"
)

var nuanceKeep string

var nuanceCmd = &cobra.Command{
	Use:   "nuance",
	Short: "Inspect and resolve contradictory graph edges",
	Long: `The dissonance engine flags edge pairs that cannot both hold (SUPPORTS vs
CONTRADICTS, USES vs AVOIDS, ...). Conflicts are detected by scanning the
graph; resolve a pair by superseding one edge or by letting both stand.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var nuanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "Scan the graph and list conflicting edge pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = logging.Init(viper.GetBool("verbose"))
		defer logging.Sync()

		engine, store, err := openNuanceEngine()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if _, err := engine.ScanAll(cmd.Context()); err != nil {
			return fmt.Errorf("scan graph: %w", err)
		}
		reviews := engine.Reviews()

		ui.RenderPageHeader("Nuance Reviews", "Edge pairs with contradictory relations")
		if len(reviews) == 0 {
			fmt.Println("No conflicts found.")
			return nil
		}

		tbl := ui.Table{Headers: []string{"EDGE A", "EDGE B", "STATUS", "REASON"}, MaxWidth: 56}
		for _, r := range reviews {
			tbl.Rows = append(tbl.Rows, []string{
				ui.TruncateID(r.EdgeAID),
				ui.TruncateID(r.EdgeBID),
				r.Status,
				r.Reason,
			})
		}
		fmt.Println(tbl.Render())
		fmt.Println("Resolve with: mindwing nuance resolve <edge-a> <edge-b> [--keep <edge>]")
		return nil
	},
}

var nuanceResolveCmd = &cobra.Command{
	Use:   "resolve <edge-a> <edge-b>",
	Short: "Resolve one conflicting pair",
	Long: `Resolve the conflict between two edges, given by id or unambiguous id
prefix. With --keep, the other edge is marked superseded in the graph and
drops out of traversal and search. Without --keep both edges stand; the
pair will surface again on the next scan.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = logging.Init(viper.GetBool("verbose"))
		defer logging.Sync()

		engine, store, err := openNuanceEngine()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if _, err := engine.ScanAll(cmd.Context()); err != nil {
			return fmt.Errorf("scan graph: %w", err)
		}

		review, err := findReview(engine.Reviews(), args[0], args[1])
		if err != nil {
			return err
		}

		keep := ""
		if nuanceKeep != "" {
			switch {
			case strings.HasPrefix(review.EdgeAID, nuanceKeep):
				keep = review.EdgeAID
			case strings.HasPrefix(review.EdgeBID, nuanceKeep):
				keep = review.EdgeBID
			default:
				return fmt.Errorf("--keep %q matches neither edge of the pair", nuanceKeep)
			}
		}

		resolved, err := engine.Resolve(cmd.Context(), review.ID, keep)
		if err != nil {
			return fmt.Errorf("resolve review: %w", err)
		}

		if keep == "" {
			fmt.Printf("✓ Both edges stand (%s / %s)\n", ui.TruncateID(resolved.EdgeAID), ui.TruncateID(resolved.EdgeBID))
			fmt.Println("The pair is re-screened on the next scan; supersede one edge to retire it.")
			return nil
		}
		retired := resolved.EdgeAID
		if keep == resolved.EdgeAID {
			retired = resolved.EdgeBID
		}
		fmt.Printf("✓ Kept %s, superseded %s\n", ui.TruncateID(keep), ui.TruncateID(retired))
		return nil
	},
}

// openNuanceEngine opens the store and builds a dissonance engine over its
// graph. The caller owns closing the store.
func openNuanceEngine() (*nuance.Engine, *memory.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	engine := nuance.NewEngine(graph.NewStore(store.DB(), store), nuance.Options{Log: logging.L()})
	return engine, store, nil
}

// findReview matches a pending review by its unordered edge pair, each edge
// given as a full id or prefix.
func findReview(reviews []nuance.Review, edgeA, edgeB string) (nuance.Review, error) {
	var matches []nuance.Review
	for _, r := range reviews {
		if r.Status != nuance.StatusPending {
			continue
		}
		straight := strings.HasPrefix(r.EdgeAID, edgeA) && strings.HasPrefix(r.EdgeBID, edgeB)
		crossed := strings.HasPrefix(r.EdgeAID, edgeB) && strings.HasPrefix(r.EdgeBID, edgeA)
		if straight || crossed {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nuance.Review{}, fmt.Errorf("no pending conflict between %q and %q; run 'mindwing nuance list'", edgeA, edgeB)
	case 1:
		return matches[0], nil
	default:
		return nuance.Review{}, fmt.Errorf("%d conflicts match %q/%q, use longer id prefixes", len(matches), edgeA, edgeB)
	}
}

func init() {
	nuanceResolveCmd.Flags().StringVar(&nuanceKeep, "keep", "", "edge id (or prefix) to keep; the other edge is superseded")
	nuanceCmd.AddCommand(nuanceListCmd)
	nuanceCmd.AddCommand(nuanceResolveCmd)
	rootCmd.AddCommand(nuanceCmd)
}
