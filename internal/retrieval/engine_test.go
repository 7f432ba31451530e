package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/goleak"

	"github.com/josephgoksu/MindWing/internal/config"
	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/types"
)

const testDims = 4

// TestMain verifies the channel fan-out leaves no goroutines behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func newSearchStore(t *testing.T) (*memory.Store, *graph.Store) {
	t.Helper()
	mem, err := memory.NewStore(":memory:", testDims)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })
	return mem, graph.NewStore(mem.DB(), mem)
}

func seedInsight(t *testing.T, store *memory.Store, content string, embedding []float32) int64 {
	t.Helper()
	id, _, err := store.InsertInsight(context.Background(), content, embedding, []int64{}, nil)
	if err != nil {
		t.Fatalf("insert insight %q: %v", content, err)
	}
	return id
}

// seedCorpus loads four insights whose embeddings rank 1,2,3,4 against the
// query vector [1,0,0,0] while only the fourth matches the word "telemetry".
func seedCorpus(t *testing.T, store *memory.Store) []int64 {
	t.Helper()
	return []int64{
		seedInsight(t, store, "alpha engine assembly", []float32{1, 0, 0, 0}),
		seedInsight(t, store, "beta fuel mixture", []float32{0.8, 0.6, 0, 0}),
		seedInsight(t, store, "gamma staging sequence", []float32{0.6, 0.8, 0, 0}),
		seedInsight(t, store, "payload telemetry checklist", []float32{0, 1, 0, 0}),
	}
}

func snapshotOf(cfg config.RetrievalConfig) func() config.RetrievalConfig {
	return func() config.RetrievalConfig { return cfg }
}

func assertMCPCode(t *testing.T, err error, code string) {
	t.Helper()
	var mcpErr *types.MCPError
	if !errors.As(err, &mcpErr) {
		t.Fatalf("error %v is not an MCPError", err)
	}
	if mcpErr.Code != code {
		t.Fatalf("error code = %s, want %s", mcpErr.Code, code)
	}
}

func TestSearchFusesDenseAndLexical(t *testing.T) {
	mem, _ := newSearchStore(t)
	ids := seedCorpus(t, mem)

	emb := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := NewEngine(mem, nil, emb, snapshotOf(config.DefaultRetrievalConfig()), Options{})

	res, err := engine.Search(context.Background(), "payload telemetry", 5, nil, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	// The telemetry doc ranks last dense but first lexical; the keyword
	// contribution lifts it over every dense-only candidate.
	want := []int64{ids[3], ids[0], ids[1], ids[2]}
	if len(res.Hits) != len(want) {
		t.Fatalf("got %d hits, want %d", len(res.Hits), len(want))
	}
	for i, id := range want {
		if res.Hits[i].ID != id {
			t.Fatalf("hit %d = id %d, want %d", i, res.Hits[i].ID, id)
		}
	}

	if res.QueryType != QueryStandard {
		t.Errorf("query type = %q, want %q", res.QueryType, QueryStandard)
	}
	if res.Counts.Semantic != 4 || res.Counts.Keyword != 1 || res.Counts.Graph != 0 {
		t.Errorf("counts = %+v, want 4/1/0", res.Counts)
	}
	if res.Weights["semantic"] != 0.7 || res.Weights["keyword"] != 0.3 {
		t.Errorf("weights = %v, want standard 0.7/0.3", res.Weights)
	}
	if _, ok := res.Weights["graph"]; ok {
		t.Errorf("weights carry a graph key with the graph channel off: %v", res.Weights)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times with a supplied query embedding", emb.calls)
	}
}

func TestSearchEmbedsWhenVectorAbsent(t *testing.T) {
	mem, _ := newSearchStore(t)
	ids := seedCorpus(t, mem)

	emb := &stubEmbedder{vec: []float32{0, 1, 0, 0}}
	engine := NewEngine(mem, nil, emb, snapshotOf(config.DefaultRetrievalConfig()), Options{})

	res, err := engine.Search(context.Background(), "beta", 5, nil, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("embedder called %d times, want 1", emb.calls)
	}
	// "beta fuel mixture" ranks third dense but is the only lexical hit.
	if res.Hits[0].ID != ids[1] {
		t.Errorf("top hit = id %d, want %d", res.Hits[0].ID, ids[1])
	}
}

func TestSearchEmbedderFailure(t *testing.T) {
	mem, _ := newSearchStore(t)
	seedCorpus(t, mem)

	wantErr := types.NewMCPError(types.ErrEmbedding, "embedding failed", nil)
	engine := NewEngine(mem, nil, &stubEmbedder{err: wantErr}, snapshotOf(config.DefaultRetrievalConfig()), Options{})

	_, err := engine.Search(context.Background(), "anything", 5, nil, nil)
	assertMCPCode(t, err, types.ErrEmbedding)
}

func TestSearchTopKTruncates(t *testing.T) {
	mem, _ := newSearchStore(t)
	ids := seedCorpus(t, mem)

	engine := NewEngine(mem, nil, &stubEmbedder{}, snapshotOf(config.DefaultRetrievalConfig()), Options{})
	res, err := engine.Search(context.Background(), "payload telemetry", 2, nil, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(res.Hits))
	}
	if res.Hits[0].ID != ids[3] || res.Hits[1].ID != ids[0] {
		t.Errorf("top hits = %d,%d want %d,%d", res.Hits[0].ID, res.Hits[1].ID, ids[3], ids[0])
	}
	// Counts report the candidate lists, not the truncated result.
	if res.Counts.Semantic != 4 {
		t.Errorf("semantic count = %d, want 4", res.Counts.Semantic)
	}
}

func TestSearchGraphChannel(t *testing.T) {
	mem, g := newSearchStore(t)
	seedCorpus(t, mem)
	redisID := seedInsight(t, mem, "redis eviction tuning", []float32{0, 0, 1, 0})

	ctx := context.Background()
	if _, err := g.AddNode(ctx, "Technology", "Redis", nil, nil); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if _, err := g.AddNode(ctx, "Insight", "EvictionNotes", nil, &redisID); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if _, err := g.AddEdge(ctx, "Redis", "EvictionNotes", "RELATES_TO", "Technology", "Insight", 1.0, nil); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	cfg := config.DefaultRetrievalConfig()
	cfg.GraphEnabled = true
	engine := NewEngine(mem, g, &stubEmbedder{}, snapshotOf(cfg), Options{})

	res, err := engine.Search(ctx, "how is the cache related to Redis", 5, nil, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if res.QueryType != QueryRelational {
		t.Errorf("query type = %q, want %q", res.QueryType, QueryRelational)
	}
	if res.Weights["semantic"] != 0.4 || res.Weights["keyword"] != 0.2 || res.Weights["graph"] != 0.4 {
		t.Errorf("weights = %v, want relational 0.4/0.2/0.4", res.Weights)
	}
	if res.Counts.Graph != 1 {
		t.Errorf("graph count = %d, want 1", res.Counts.Graph)
	}
	// Graph plus lexical contributions beat the dense-only leaders.
	if res.Hits[0].ID != redisID {
		t.Errorf("top hit = id %d, want graph-linked %d", res.Hits[0].ID, redisID)
	}
}

func TestSearchGraphDisabledKeepsStandardWeights(t *testing.T) {
	mem, g := newSearchStore(t)
	seedCorpus(t, mem)
	redisID := seedInsight(t, mem, "redis eviction tuning", []float32{0, 0, 1, 0})

	ctx := context.Background()
	if _, err := g.AddNode(ctx, "Insight", "EvictionNotes", nil, &redisID); err != nil {
		t.Fatalf("add node: %v", err)
	}

	engine := NewEngine(mem, g, &stubEmbedder{}, snapshotOf(config.DefaultRetrievalConfig()), Options{})
	res, err := engine.Search(ctx, "what is related to Redis", 5, nil, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	// Classification still reports relational, but with the graph channel
	// disabled the standard calibration applies.
	if res.QueryType != QueryRelational {
		t.Errorf("query type = %q, want %q", res.QueryType, QueryRelational)
	}
	if res.Weights["semantic"] != 0.7 || res.Weights["keyword"] != 0.3 {
		t.Errorf("weights = %v, want standard 0.7/0.3", res.Weights)
	}
	if res.Counts.Graph != 0 {
		t.Errorf("graph count = %d, want 0", res.Counts.Graph)
	}
}

func TestSearchWeightsOverride(t *testing.T) {
	mem, _ := newSearchStore(t)
	ids := seedCorpus(t, mem)

	engine := NewEngine(mem, nil, &stubEmbedder{}, snapshotOf(config.DefaultRetrievalConfig()), Options{})
	override := map[string]float64{"semantic": 1.0}
	res, err := engine.Search(context.Background(), "payload telemetry", 5, override, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	// With the keyword weight zeroed the pure dense order stands.
	want := []int64{ids[0], ids[1], ids[2], ids[3]}
	for i, id := range want {
		if res.Hits[i].ID != id {
			t.Fatalf("hit %d = id %d, want %d", i, res.Hits[i].ID, id)
		}
	}
	if len(res.Weights) != 1 || res.Weights["semantic"] != 1.0 {
		t.Errorf("weights = %v, want the override echoed verbatim", res.Weights)
	}
}

func TestSearchPunctuationOnlyQuery(t *testing.T) {
	mem, _ := newSearchStore(t)
	ids := seedCorpus(t, mem)

	engine := NewEngine(mem, nil, &stubEmbedder{}, snapshotOf(config.DefaultRetrievalConfig()), Options{})
	res, err := engine.Search(context.Background(), "?!?!", 5, nil, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Counts.Keyword != 0 {
		t.Errorf("keyword count = %d, want 0 for a query with no content words", res.Counts.Keyword)
	}
	if res.Hits[0].ID != ids[0] {
		t.Errorf("top hit = id %d, want dense leader %d", res.Hits[0].ID, ids[0])
	}
}

func TestSearchValidation(t *testing.T) {
	mem, _ := newSearchStore(t)
	engine := NewEngine(mem, nil, &stubEmbedder{}, snapshotOf(config.DefaultRetrievalConfig()), Options{})

	_, err := engine.Search(context.Background(), "   ", 5, nil, nil)
	assertMCPCode(t, err, types.ErrValidation)

	_, err = engine.Search(context.Background(), "ok", 5, nil, []float32{1, 2})
	assertMCPCode(t, err, types.ErrValidation)
}

func TestSearchAllChannelsFailed(t *testing.T) {
	mem, _ := newSearchStore(t)
	engine := NewEngine(mem, nil, &stubEmbedder{}, snapshotOf(config.DefaultRetrievalConfig()), Options{})

	_ = mem.Close()
	_, err := engine.Search(context.Background(), "anything", 5, nil, []float32{1, 0, 0, 0})
	assertMCPCode(t, err, types.ErrInternal)
}
