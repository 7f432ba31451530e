package judge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/types"
)

type stubScorer struct {
	mu     sync.Mutex
	scores map[string]float64
	errFor map[string]error
	calls  int
}

func (s *stubScorer) ScoreRelevance(ctx context.Context, query, doc string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.errFor[doc]; ok {
		return 0, err
	}
	return s.scores[doc], nil
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestPipeline(t *testing.T, judge1, judge2 *stubScorer) (*Pipeline, *memory.Store) {
	t.Helper()
	store, err := memory.NewStore(":memory:", 4)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p := NewPipeline(Config{
		Judge1:      judge1,
		Judge2:      judge2,
		Judge1Model: "judge-one-model",
		Judge2Model: "judge-two-model",
		Store:       store,
	})
	return p, store
}

func fiveDocs() []Doc {
	return []Doc{
		{ID: 1, Content: "first document"},
		{ID: 2, Content: "second document"},
		{ID: 3, Content: "third document"},
		{ID: 4, Content: "fourth document"},
		{ID: 5, Content: "fifth document"},
	}
}

func TestRunStoresGroundTruth(t *testing.T) {
	judge1 := &stubScorer{scores: map[string]float64{
		"first document": 0.8, "second document": 0.6, "third document": 0.3,
		"fourth document": 0.9, "fifth document": 0.4,
	}}
	judge2 := &stubScorer{scores: map[string]float64{
		"first document": 0.7, "second document": 0.6, "third document": 0.2,
		"fourth document": 0.8, "fifth document": 0.4,
	}}
	p, store := newTestPipeline(t, judge1, judge2)

	out, err := p.Run(context.Background(), "q-100", "which documents matter", fiveDocs())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.GroundTruthID <= 0 {
		t.Errorf("ground truth id = %d, want positive", out.GroundTruthID)
	}
	if out.Kappa == nil || *out.Kappa != 1.0 {
		t.Fatalf("kappa = %v, want 1.0", out.Kappa)
	}
	wantJ1 := []float64{0.8, 0.6, 0.3, 0.9, 0.4}
	for i, s := range wantJ1 {
		if out.Judge1Scores[i] != s {
			t.Errorf("judge1 score %d = %v, want %v", i, out.Judge1Scores[i], s)
		}
	}
	if judge1.callCount() != 5 || judge2.callCount() != 5 {
		t.Errorf("judge calls = %d/%d, want 5/5", judge1.callCount(), judge2.callCount())
	}

	recs, err := store.ListGroundTruth(context.Background(), 10)
	if err != nil {
		t.Fatalf("list ground truth: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("stored %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.QueryID != "q-100" {
		t.Errorf("query id = %q, want q-100", rec.QueryID)
	}
	if rec.Judge1Model != "judge-one-model" || rec.Judge2Model != "judge-two-model" {
		t.Errorf("models = %q/%q", rec.Judge1Model, rec.Judge2Model)
	}
	if rec.Kappa == nil || *rec.Kappa != 1.0 {
		t.Errorf("stored kappa = %v, want 1.0", rec.Kappa)
	}
	if len(rec.ExpectedDocs) != 5 || rec.ExpectedDocs[0] != "1" || rec.ExpectedDocs[4] != "5" {
		t.Errorf("expected docs = %v", rec.ExpectedDocs)
	}
	for i := range wantJ1 {
		if rec.Judge1Scores[i] != wantJ1[i] {
			t.Errorf("stored judge1 score %d = %v, want %v", i, rec.Judge1Scores[i], wantJ1[i])
		}
	}
}

func TestRunNeutralFallbackPerDocument(t *testing.T) {
	judge1 := &stubScorer{scores: map[string]float64{
		"first document": 0.9, "second document": 0.9,
	}}
	judge2 := &stubScorer{
		scores: map[string]float64{"first document": 0.8},
		errFor: map[string]error{"second document": errors.New("provider keeps timing out")},
	}
	p, _ := newTestPipeline(t, judge1, judge2)

	docs := []Doc{{ID: 1, Content: "first document"}, {ID: 2, Content: "second document"}}
	out, err := p.Run(context.Background(), "q-101", "query", docs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.Judge2Scores[0] != 0.8 {
		t.Errorf("judge2 score 0 = %v, want 0.8", out.Judge2Scores[0])
	}
	if out.Judge2Scores[1] != NeutralScore {
		t.Errorf("judge2 score 1 = %v, want neutral %v", out.Judge2Scores[1], NeutralScore)
	}
	if out.Judge1Scores[1] != 0.9 {
		t.Errorf("judge1 score 1 = %v, want 0.9 despite judge2 failing", out.Judge1Scores[1])
	}
}

func TestRunUndefinedKappaStoredAsNull(t *testing.T) {
	judge1 := &stubScorer{scores: map[string]float64{"first document": 0.9, "second document": 0.8}}
	judge2 := &stubScorer{scores: map[string]float64{"first document": 0.7, "second document": 1.0}}
	p, store := newTestPipeline(t, judge1, judge2)

	docs := []Doc{{ID: 1, Content: "first document"}, {ID: 2, Content: "second document"}}
	out, err := p.Run(context.Background(), "q-102", "query", docs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kappa != nil {
		t.Errorf("kappa = %v, want nil for unanimous judges", *out.Kappa)
	}

	recs, err := store.ListGroundTruth(context.Background(), 1)
	if err != nil {
		t.Fatalf("list ground truth: %v", err)
	}
	if recs[0].Kappa != nil {
		t.Errorf("stored kappa = %v, want NULL", *recs[0].Kappa)
	}
}

func TestRunValidation(t *testing.T) {
	p, _ := newTestPipeline(t, &stubScorer{}, &stubScorer{})
	ctx := context.Background()

	cases := []struct {
		name    string
		queryID string
		query   string
		docs    []Doc
	}{
		{"missing query id", "", "query", fiveDocs()},
		{"missing query", "q-1", "  ", fiveDocs()},
		{"no docs", "q-1", "query", nil},
		{"blank doc content", "q-1", "query", []Doc{{ID: 1, Content: " "}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Run(ctx, tc.queryID, tc.query, tc.docs)
			var mcpErr *types.MCPError
			if !errors.As(err, &mcpErr) || mcpErr.Code != types.ErrValidation {
				t.Fatalf("want VALIDATION error, got %v", err)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	p, _ := newTestPipeline(t, &stubScorer{}, &stubScorer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, "q-1", "query", fiveDocs())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
