/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/MindWing/internal/config"
	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/internal/logging"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/internal/retrieval"
	"github.com/josephgoksu/MindWing/internal/ui"
)

var (
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot hybrid search against stored insights",
	Long: `Search L2 insights with the same fused ranking the MCP server uses:
semantic (vector), keyword (lexical), and graph channels combined by
reciprocal rank fusion. Requires the embedding provider's API key.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = logging.Init(viper.GetBool("verbose"))
		defer logging.Sync()

		query := strings.Join(args, " ")

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.ValidateProviderEnv(cfg.Embedding.Provider); err != nil {
			return fmt.Errorf("embedding credentials: %w", err)
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = store.Close() }()

		embedder, err := newEmbedder(cmd.Context(), cfg, costRecorder(store))
		if err != nil {
			return fmt.Errorf("build embedding provider: %w", err)
		}

		// One-shot run: seed the calibration snapshot without watching.
		watcher := config.NewWatcher(viper.ConfigFileUsed(), logging.L())
		engine := retrieval.NewEngine(store, graph.NewStore(store.DB(), store), embedder, watcher.Current, retrieval.Options{
			Timeout:  time.Duration(cfg.Timeouts.HybridSearchMS) * time.Millisecond,
			DecayTau: time.Duration(cfg.Graph.DecayTauHours * float64(time.Hour)),
			Log:      logging.L(),
		})

		result, err := engine.Search(cmd.Context(), query, searchTopK, nil, nil)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if searchJSON {
			return printSearchJSON(query, result)
		}
		printSearchTable(query, result)
		return nil
	},
}

func printSearchJSON(query string, result *retrieval.Result) error {
	hits := result.Hits
	if hits == nil {
		hits = []memory.ScoredInsight{}
	}
	out := struct {
		Query     string                 `json:"query"`
		QueryType string                 `json:"queryType"`
		Weights   map[string]float64     `json:"weights"`
		Counts    map[string]int         `json:"counts"`
		Hits      []memory.ScoredInsight `json:"hits"`
	}{
		Query:     query,
		QueryType: result.QueryType,
		Weights:   result.Weights,
		Counts: map[string]int{
			"semantic": result.Counts.Semantic,
			"keyword":  result.Counts.Keyword,
			"graph":    result.Counts.Graph,
		},
		Hits: hits,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printSearchTable(query string, result *retrieval.Result) {
	ui.RenderPageHeader("Hybrid Search",
		fmt.Sprintf("%q · %s query · sem %.2f / key %.2f / graph %.2f",
			ui.Truncate(query, 48), result.QueryType,
			result.Weights["semantic"], result.Weights["keyword"], result.Weights["graph"]))

	if len(result.Hits) == 0 {
		fmt.Println("No matches.")
		return
	}

	tbl := ui.Table{
		Headers:    []string{"ID", "SCORE", "CONTENT", "CREATED"},
		MaxWidth:   72,
		AlignRight: []int{1},
	}
	for _, hit := range result.Hits {
		tbl.Rows = append(tbl.Rows, []string{
			strconv.FormatInt(hit.ID, 10),
			fmt.Sprintf("%.4f", hit.Score),
			ui.Truncate(hit.Content, 70),
			hit.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Println(tbl.Render())
	fmt.Printf("%d hits (semantic %d · keyword %d · graph %d)\n",
		len(result.Hits), result.Counts.Semantic, result.Counts.Keyword, result.Counts.Graph)
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "number of results to return")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit raw JSON instead of a table")
	rootCmd.AddCommand(searchCmd)
}
