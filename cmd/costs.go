/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/MindWing/internal/logging"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/internal/ui"
)

var costsJSON bool

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show provider spend aggregated by provider, operation and day",
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

		summaries, err := store.SummarizeCosts(cmd.Context())
		if err != nil {
			return fmt.Errorf("summarize costs: %w", err)
		}
		total, err := store.TotalCost(cmd.Context())
		if err != nil {
			return fmt.Errorf("total cost: %w", err)
		}

		if costsJSON {
			if summaries == nil {
				summaries = []memory.CostSummary{}
			}
			out := struct {
				Costs    []memory.CostSummary `json:"costs"`
				TotalUSD float64              `json:"totalUsd"`
			}{Costs: summaries, TotalUSD: total}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("encode costs: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		ui.RenderPageHeader("API Costs", "Estimated provider spend from the local ledger")
		if len(summaries) == 0 {
			fmt.Println("No provider calls recorded yet.")
			return nil
		}

		tbl := ui.Table{
			Headers:    []string{"DAY", "PROVIDER", "OPERATION", "CALLS", "TOKENS", "COST (USD)"},
			AlignRight: []int{3, 4, 5},
		}
		for _, s := range summaries {
			tbl.Rows = append(tbl.Rows, []string{
				s.Day,
				s.Provider,
				s.Operation,
				strconv.Itoa(s.Calls),
				strconv.FormatInt(s.Tokens, 10),
				fmt.Sprintf("%.6f", s.CostUSD),
			})
		}
		fmt.Println(tbl.Render())
		fmt.Printf("Total: $%.6f\n", total)
		return nil
	},
}

func init() {
	costsCmd.Flags().BoolVar(&costsJSON, "json", false, "emit raw JSON instead of a table")
	rootCmd.AddCommand(costsCmd)
}
