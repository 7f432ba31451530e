/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/MindWing/internal/config"
	"github.com/josephgoksu/MindWing/internal/eval"
	"github.com/josephgoksu/MindWing/internal/judge"
	"github.com/josephgoksu/MindWing/internal/logging"
	"github.com/josephgoksu/MindWing/internal/ui"
)

var (
	evalSuitePath string
	evalJudge1    string
	evalJudge2    string
	evalJSON      bool
	evalInitForce bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score retrieval quality with the dual-judge pipeline",
	Long: `Run a YAML suite of query/document cases through two independent judge
models and report per-case agreement (Cohen's kappa) plus the provider
spend of the run. Every run also persists ground-truth rows for later
calibration.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var evalInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter evaluation suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultSuitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create eval directory: %w", err)
		}
		if err := eval.WriteFileIfMissing(path, eval.DefaultSuiteTemplate, evalInitForce); err != nil {
			return err
		}
		fmt.Printf("✓ Suite template at %s\n", path)
		fmt.Println("Edit the cases, then: mindwing eval run")
		return nil
	},
}

var evalRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the evaluation suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = logging.Init(viper.GetBool("verbose"))
		defer logging.Sync()

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyJudgeOverride(&cfg.Judges.Judge1, evalJudge1)
		applyJudgeOverride(&cfg.Judges.Judge2, evalJudge2)

		for _, provider := range []string{cfg.Judges.Judge1.Provider, cfg.Judges.Judge2.Provider} {
			if err := config.ValidateProviderEnv(provider); err != nil {
				return fmt.Errorf("judge credentials: %w", err)
			}
		}

		suitePath := evalSuitePath
		if suitePath == "" {
			suitePath = defaultSuitePath()
		}
		suite, err := eval.LoadSuite(suitePath)
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = store.Close() }()

		record := costRecorder(store)
		judge1, err := newScorer(cmd.Context(), cfg.Judges.Judge1, cfg, record)
		if err != nil {
			return fmt.Errorf("build judge1: %w", err)
		}
		judge2, err := newScorer(cmd.Context(), cfg.Judges.Judge2, cfg, record)
		if err != nil {
			return fmt.Errorf("build judge2: %w", err)
		}
		pipeline := judge.NewPipeline(judge.Config{
			Judge1:      judge1,
			Judge2:      judge2,
			Judge1Model: cfg.Judges.Judge1.Model,
			Judge2Model: cfg.Judges.Judge2.Model,
			Store:       store,
			Log:         logging.L(),
		})

		results, err := eval.NewRunner(pipeline, store, logging.L()).Run(cmd.Context(), suite)
		if err != nil {
			return fmt.Errorf("run suite: %w", err)
		}

		if evalJSON {
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("encode results: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		ui.RenderEvalReport(evalReport(suitePath, results))
		return nil
	},
}

func defaultSuitePath() string {
	return filepath.Join(config.DefaultDataDir(), "eval", "suite.yaml")
}

// applyJudgeOverride rewrites one judge from a "provider:model" (or bare
// model) flag value.
func applyJudgeOverride(jm *config.JudgeModel, value string) {
	if value == "" {
		return
	}
	provider, model := eval.ParseModel(value)
	if provider != "" {
		jm.Provider = provider
	}
	jm.Model = model
}

func evalReport(suitePath string, results *eval.Results) ui.EvalReport {
	report := ui.EvalReport{
		Suite:       results.Suite,
		Judge1Model: results.Judge1Model,
		Judge2Model: results.Judge2Model,
		TotalUSD:    results.CostUSD,
	}
	if report.Suite == "" {
		report.Suite = filepath.Base(suitePath)
	}
	for _, c := range results.Cases {
		report.Cases = append(report.Cases, ui.EvalCaseRow{
			ID:    c.CaseID,
			Docs:  c.Docs,
			Kappa: c.Kappa,
			Err:   c.Err,
		})
	}
	for _, cs := range results.Costs {
		report.Costs = append(report.Costs, ui.EvalCostRow{
			Provider:  cs.Provider,
			Operation: cs.Operation,
			Calls:     cs.Calls,
			Tokens:    cs.Tokens,
			CostUSD:   cs.CostUSD,
		})
	}
	return report
}

func init() {
	evalInitCmd.Flags().BoolVar(&evalInitForce, "force", false, "overwrite an existing suite")
	evalRunCmd.Flags().StringVar(&evalSuitePath, "suite", "", "suite file (default ~/.mindwing/eval/suite.yaml)")
	evalRunCmd.Flags().StringVar(&evalJudge1, "judge1", "", "override judge1 as provider:model")
	evalRunCmd.Flags().StringVar(&evalJudge2, "judge2", "", "override judge2 as provider:model")
	evalRunCmd.Flags().BoolVar(&evalJSON, "json", false, "emit raw JSON instead of the report")
	evalCmd.AddCommand(evalInitCmd)
	evalCmd.AddCommand(evalRunCmd)
	rootCmd.AddCommand(evalCmd)
}
