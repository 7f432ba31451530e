package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/josephgoksu/MindWing/internal/config"
	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/internal/llm"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/types"
)

const (
	// DefaultTopK bounds the result list when the caller does not size it.
	DefaultTopK = 5

	// DefaultTimeout caps the concurrent candidate fan-out.
	DefaultTimeout = time.Second

	// maxEntityTokens bounds how many query tokens are tried as graph
	// anchors.
	maxEntityTokens = 12
)

// Counts reports the per-channel candidate list sizes before fusion.
type Counts struct {
	Semantic int
	Keyword  int
	Graph    int
}

// Result is one hybrid search response: fused hits plus the calibration
// that produced them.
type Result struct {
	Hits      []memory.ScoredInsight
	Weights   map[string]float64
	Counts    Counts
	QueryType string
}

// Engine fans a query out over the dense, lexical, and graph channels and
// fuses the ranked candidate lists.
type Engine struct {
	store    *memory.Store
	graph    *graph.Store
	embedder llm.Embedder
	snapshot func() config.RetrievalConfig
	timeout  time.Duration
	decayTau time.Duration
	log      *zap.Logger
}

// Options tunes an Engine beyond its required collaborators.
type Options struct {
	// Timeout caps the channel fan-out. Defaults to DefaultTimeout.
	Timeout time.Duration
	// DecayTau is the edge decay constant used when ranking the graph
	// channel. Zero means the package default.
	DecayTau time.Duration
	// Log receives channel degradation warnings.
	Log *zap.Logger
}

// NewEngine wires the retrieval engine. graphStore may be nil when the
// graph channel is not deployed. snapshot must return the current
// calibration; pass config.Watcher.Current to pick up hot reloads.
func NewEngine(store *memory.Store, graphStore *graph.Store, embedder llm.Embedder, snapshot func() config.RetrievalConfig, opts Options) *Engine {
	if snapshot == nil {
		snapshot = func() config.RetrievalConfig { return config.DefaultRetrievalConfig() }
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		graph:    graphStore,
		embedder: embedder,
		snapshot: snapshot,
		timeout:  opts.Timeout,
		decayTau: opts.DecayTau,
		log:      opts.Log,
	}
}

// Search embeds the query (unless the caller supplied a vector), runs the
// candidate channels concurrently under the fan-out deadline, and fuses
// them. A single failed channel degrades to an empty list; the search only
// errors when every channel failed.
func (e *Engine) Search(ctx context.Context, query string, topK int, weightsOverride map[string]float64, queryEmbedding []float32) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ValidationError("query_text", "must not be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(queryEmbedding) > 0 && len(queryEmbedding) != e.store.Dimensions() {
		return nil, types.ValidationError("query_embedding",
			fmt.Sprintf("embedding dimension %d does not match configured %d", len(queryEmbedding), e.store.Dimensions()))
	}

	cfg := e.snapshot()
	multiplier := cfg.CandidateMultiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	candidates := multiplier * topK

	queryType := ClassifyQuery(query, cfg.RelationalKeywords)

	graphActive := cfg.GraphEnabled && e.graph != nil
	if graphActive {
		n, err := e.graph.CountNodes(ctx)
		if err != nil {
			e.log.Warn("graph channel skipped", zap.Error(err))
			graphActive = false
		} else {
			graphActive = n > 0
		}
	}

	if queryEmbedding == nil {
		if e.embedder == nil {
			return nil, types.NewMCPError(types.ErrInternal, "no embedding provider configured", nil)
		}
		vec, err := e.embedder.EmbedText(ctx, query)
		if err != nil {
			return nil, err
		}
		queryEmbedding = vec
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		dense, lexical, graphHits  []memory.ScoredInsight
		denseErr, lexErr, graphErr error
	)
	g, gctx := errgroup.WithContext(searchCtx)
	g.Go(func() error {
		dense, denseErr = e.store.SearchInsightsByVector(gctx, queryEmbedding, candidates)
		if denseErr != nil {
			e.log.Warn("dense channel failed", zap.Error(denseErr))
		}
		return nil
	})
	g.Go(func() error {
		lexical, lexErr = e.store.SearchInsightsByText(gctx, query, candidates)
		if lexErr != nil {
			e.log.Warn("lexical channel failed", zap.Error(lexErr))
		}
		return nil
	})
	if graphActive {
		g.Go(func() error {
			graphHits, graphErr = e.graphChannel(gctx, query, candidates)
			if graphErr != nil {
				e.log.Warn("graph channel failed", zap.Error(graphErr))
			}
			return nil
		})
	}
	_ = g.Wait()

	if denseErr != nil && lexErr != nil && (!graphActive || graphErr != nil) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
			return nil, types.TimeoutError("hybrid_search")
		}
		return nil, types.NewMCPError(types.ErrInternal, "all retrieval channels failed",
			map[string]interface{}{"cause": denseErr.Error()})
	}

	set := cfg.StandardWeights()
	if graphActive {
		set = cfg.ActiveWeights(queryType == QueryRelational)
	}
	weights := set.Map()
	if len(weightsOverride) > 0 {
		weights = weightsOverride
	}

	channels := []Channel{
		{Name: ChannelSemantic, Weight: weights[ChannelSemantic], Ranked: dense},
		{Name: ChannelKeyword, Weight: weights[ChannelKeyword], Ranked: lexical},
	}
	if graphActive {
		channels = append(channels, Channel{Name: ChannelGraph, Weight: weights[ChannelGraph], Ranked: graphHits})
	}
	fused := FuseRRF(channels, cfg.RRFK)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	return &Result{
		Hits:      fused,
		Weights:   weights,
		Counts:    Counts{Semantic: len(dense), Keyword: len(lexical), Graph: len(graphHits)},
		QueryType: queryType,
	}, nil
}

// graphChannel anchors query tokens on graph nodes and ranks the insights
// linked from their immediate neighbourhoods by edge relevance.
func (e *Engine) graphChannel(ctx context.Context, query string, topN int) ([]memory.ScoredInsight, error) {
	nodes, err := e.graph.NodesByNames(ctx, entityCandidates(query))
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	anchors := make([]string, 0, len(nodes))
	for name := range nodes {
		anchors = append(anchors, name)
	}
	sort.Strings(anchors)

	best := map[int64]float64{}
	for _, name := range anchors {
		neighbors, err := e.graph.Neighbors(ctx, name, graph.NeighborOptions{DecayTau: e.decayTau})
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if nb.VectorID == nil {
				continue
			}
			if score, seen := best[*nb.VectorID]; !seen || nb.RelevanceScore > score {
				best[*nb.VectorID] = nb.RelevanceScore
			}
		}
	}
	if len(best) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := best[ids[i]], best[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > topN {
		ids = ids[:topN]
	}

	hits := make([]memory.ScoredInsight, 0, len(ids))
	for _, id := range ids {
		ins, ok, err := e.store.GetInsight(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		hits = append(hits, memory.ScoredInsight{Insight: *ins, Score: best[id]})
	}
	return hits, nil
}

// entityCandidates derives node name candidates from the query: whitespace
// tokens with edge punctuation trimmed, tried in original, lower, upper,
// and title case.
func entityCandidates(query string) []string {
	title := cases.Title(language.English)
	seen := map[string]struct{}{}
	var names []string
	add := func(name string) {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	tokens := 0
	for _, field := range strings.Fields(query) {
		tok := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if utf8.RuneCountInString(tok) < 3 {
			continue
		}
		tokens++
		if tokens > maxEntityTokens {
			break
		}
		add(tok)
		lower := strings.ToLower(tok)
		add(lower)
		add(strings.ToUpper(tok))
		add(title.String(lower))
	}
	return names
}
