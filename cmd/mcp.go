/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/josephgoksu/MindWing/internal/config"
	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/internal/judge"
	"github.com/josephgoksu/MindWing/internal/llm"
	"github.com/josephgoksu/MindWing/internal/logging"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/internal/nuance"
	"github.com/josephgoksu/MindWing/internal/policy"
	"github.com/josephgoksu/MindWing/internal/retrieval"
	"github.com/josephgoksu/MindWing/internal/telemetry"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP memory server",
	Long: `Start the Model Context Protocol server over stdin/stdout so AI
assistants can read and write MindWing memory.

The server exposes tools for storing raw dialogue, compressing insights,
maintaining working memory, reflection episodes, dual-judge scoring,
hybrid retrieval, and the knowledge graph, plus read-only memory://
resources over every tier.

stdout carries pure JSON-RPC; all diagnostics go to stderr. The server
runs until the client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// mcpDeps bundles everything the tool and resource handlers need.
type mcpDeps struct {
	cfg      *config.Config
	store    *memory.Store
	graph    *graph.Store
	engine   *retrieval.Engine
	embedder llm.Embedder
	pipeline *judge.Pipeline
	nuance   *nuance.Engine
	policy   *policy.Engine
	tel      telemetry.Client
	log      *zap.Logger
}

func runMCPServer(ctx context.Context) error {
	if err := logging.Init(viper.GetBool("verbose")); err != nil {
		return err
	}
	defer logging.Sync()
	log := logging.L()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Secrets are checked before anything opens so a placeholder key
	// fails the process, not the first tool call.
	if err := config.ValidateEnv(cfg); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	graphStore := graph.NewStore(store.DB(), store)
	record := costRecorder(store)

	embedder, err := newEmbedder(ctx, cfg, record)
	if err != nil {
		return fmt.Errorf("build embedding provider: %w", err)
	}
	judge1, err := newScorer(ctx, cfg.Judges.Judge1, cfg, record)
	if err != nil {
		return fmt.Errorf("build judge1: %w", err)
	}
	judge2, err := newScorer(ctx, cfg.Judges.Judge2, cfg, record)
	if err != nil {
		return fmt.Errorf("build judge2: %w", err)
	}
	pipeline := judge.NewPipeline(judge.Config{
		Judge1:      judge1,
		Judge2:      judge2,
		Judge1Model: cfg.Judges.Judge1.Model,
		Judge2Model: cfg.Judges.Judge2.Model,
		Store:       store,
		Log:         log,
	})

	nuanceEngine := nuance.NewEngine(graphStore, nuance.Options{Log: log})
	reviews, err := nuanceEngine.ScanAll(ctx)
	if err != nil {
		return fmt.Errorf("scan graph for contradictions: %w", err)
	}
	if len(reviews) > 0 {
		log.Info("nuance reviews opened at startup", zap.Int("count", len(reviews)))
	}

	policyEngine, err := policy.NewEngine(policy.Config{Dir: cfg.Policy.Dir, Log: log})
	if err != nil {
		return fmt.Errorf("load ingestion policies: %w", err)
	}
	if n := policyEngine.PolicyCount(); n > 0 {
		log.Info("ingestion policies loaded", zap.Int("count", n))
	}

	tel := newTelemetryClient(cfg, log)
	defer func() { _ = tel.Close() }()

	// The watcher keeps the retrieval calibration live across config
	// edits; searches read the snapshot current at their start.
	watcher := config.NewWatcher(viper.ConfigFileUsed(), log)
	if err := watcher.Start(); err != nil {
		log.Warn("config watch unavailable, calibration is fixed", zap.Error(err))
	}
	defer watcher.Stop()

	decayTau := time.Duration(cfg.Graph.DecayTauHours * float64(time.Hour))
	engine := retrieval.NewEngine(store, graphStore, embedder, watcher.Current, retrieval.Options{
		Timeout:  time.Duration(cfg.Timeouts.HybridSearchMS) * time.Millisecond,
		DecayTau: decayTau,
		Log:      log,
	})

	// Memory-strength decay runs for the lifetime of the server.
	decayCtx, stopDecay := context.WithCancel(ctx)
	defer stopDecay()
	if cfg.Graph.DecayIntervalMinutes > 0 {
		go graphStore.DecayLoop(decayCtx,
			time.Duration(cfg.Graph.DecayIntervalMinutes)*time.Minute,
			decayTau, log)
	}

	deps := &mcpDeps{
		cfg:      cfg,
		store:    store,
		graph:    graphStore,
		engine:   engine,
		embedder: embedder,
		pipeline: pipeline,
		nuance:   nuanceEngine,
		policy:   policyEngine,
		tel:      tel,
		log:      log,
	}

	impl := &mcp.Implementation{
		Name:    "mindwing",
		Version: version,
	}
	server := mcp.NewServer(impl, &mcp.ServerOptions{})

	registerMCPTools(server, deps)
	registerMCPResources(server, deps)

	log.Info("MCP server starting",
		zap.String("db", cfg.Database.Path),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("embedding", cfg.Embedding.Provider+"/"+cfg.Embedding.Model))

	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// newTelemetryClient builds the opt-in telemetry client, degrading to the
// no-op client on any setup problem.
func newTelemetryClient(cfg *config.Config, log *zap.Logger) telemetry.Client {
	if !telemetry.Enabled(cfg.Telemetry.Enabled) || cfg.Telemetry.APIKey == "" {
		return telemetry.NewNoop()
	}
	installID, err := telemetry.InstallID(config.DefaultDataDir())
	if err != nil {
		log.Warn("telemetry disabled, no install id", zap.Error(err))
		return telemetry.NewNoop()
	}
	client, err := telemetry.New(telemetry.Config{
		Enabled:    cfg.Telemetry.Enabled,
		APIKey:     cfg.Telemetry.APIKey,
		Host:       cfg.Telemetry.Host,
		DistinctID: installID,
		Version:    version,
	})
	if err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
		return telemetry.NewNoop()
	}
	return client
}

// registerMCPTools wires the 13 memory tools onto the server.
func registerMCPTools(server *mcp.Server, deps *mcpDeps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Check that the memory server is alive. Returns a timestamped pong.",
	}, pingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "store_raw_dialogue",
		Description: "Append one conversational turn to the L0 raw dialogue log. Requires session_id, speaker, and content; metadata is free-form JSON.",
	}, storeRawDialogueHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compress_to_l2_insight",
		Description: "Store a compressed semantic insight with its embedding. source_ids lists the L0 rows it derives from; pass an empty list for synthesised knowledge.",
	}, compressToL2InsightHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "store_episode",
		Description: "Store a reflection episode for verbal reinforcement: the query, a reward in [-1,1], and the reflection text. The query is embedded for later similarity search.",
	}, storeEpisodeHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "store_dual_judge_scores",
		Description: "Score candidate documents against a query with two independent judges and persist the ground-truth row with Cohen's kappa agreement.",
	}, storeDualJudgeScoresHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "hybrid_search",
		Description: "Retrieve insights by fusing dense vector search and lexical FTS (plus graph injection when enabled) with weighted reciprocal rank fusion.",
	}, hybridSearchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_working_memory",
		Description: "Insert an item into the bounded working set. When the set is over capacity one victim is archived to stale memory and evicted, all in one transaction.",
	}, updateWorkingMemoryHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_insight_by_id",
		Description: "Fetch one insight by id, without its embedding. Unknown ids return status \"not_found\" instead of an error.",
	}, getInsightByIDHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_episodes",
		Description: "List recent reflection episodes, newest first.",
	}, listEpisodesHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_add_node",
		Description: "Upsert a typed named entity in the knowledge graph, unique per (label, name). vector_id anchors the node to an insight embedding.",
	}, graphAddNodeHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_add_edge",
		Description: "Insert a typed weighted relation between two named nodes, auto-creating missing endpoints. New edges are screened for contradictions.",
	}, graphAddEdgeHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_query_neighbors",
		Description: "Traverse the knowledge graph outward from a named node, optionally ranked by the integrative evaluation function.",
	}, graphQueryNeighborsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_find_path",
		Description: "Find the shortest paths between two named nodes, optionally scored by mean edge IEF.",
	}, graphFindPathHandler(deps))
}
