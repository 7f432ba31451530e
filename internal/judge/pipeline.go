package judge

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/josephgoksu/MindWing/internal/llm"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/types"
)

// NeutralScore is recorded for a judge whose provider keeps failing on one
// document. Partial success beats aborting the whole batch.
const NeutralScore = 0.5

// Doc is one document under evaluation.
type Doc struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// Outcome reports one pipeline run: both score arrays, the model
// identifiers, and the agreement statistic (nil when undefined).
type Outcome struct {
	GroundTruthID int64
	Judge1Scores  []float64
	Judge2Scores  []float64
	Judge1Model   string
	Judge2Model   string
	Kappa         *float64
}

// Config wires a Pipeline.
type Config struct {
	Judge1      llm.Scorer
	Judge2      llm.Scorer
	Judge1Model string
	Judge2Model string
	Store       *memory.Store
	Log         *zap.Logger
}

// Pipeline grades documents with two judges and persists the ground-truth
// row.
type Pipeline struct {
	judge1, judge2 llm.Scorer
	model1, model2 string
	store          *memory.Store
	log            *zap.Logger
}

// NewPipeline builds the dual-judge pipeline.
func NewPipeline(cfg Config) *Pipeline {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		judge1: cfg.Judge1,
		judge2: cfg.Judge2,
		model1: cfg.Judge1Model,
		model2: cfg.Judge2Model,
		store:  cfg.Store,
		log:    log,
	}
}

// Run scores every document with both judges in parallel, computes kappa,
// and persists the ground-truth record. A judge that keeps failing on one
// document contributes the neutral score for that document; the run only
// fails on invalid input, cancellation, or a storage error.
func (p *Pipeline) Run(ctx context.Context, queryID, query string, docs []Doc) (*Outcome, error) {
	if strings.TrimSpace(queryID) == "" {
		return nil, types.ValidationError("query_id", "query_id must not be empty")
	}
	if strings.TrimSpace(query) == "" {
		return nil, types.ValidationError("query", "query must not be empty")
	}
	if len(docs) == 0 {
		return nil, types.ValidationError("docs", "at least one document is required")
	}
	for i, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			return nil, types.ValidationError("docs", "document "+strconv.Itoa(i)+" has no content")
		}
	}

	ctx = llm.WithQueryID(ctx, queryID)

	j1 := make([]float64, len(docs))
	j2 := make([]float64, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	for i := range docs {
		i := i
		g.Go(func() error {
			j1[i] = p.scoreOne(gctx, p.judge1, "judge1", queryID, docs[i].ID, query, docs[i].Content)
			return nil
		})
		g.Go(func() error {
			j2[i] = p.scoreOne(gctx, p.judge2, "judge2", queryID, docs[i].ID, query, docs[i].Content)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kappa := Kappa(j1, j2)
	var kappaPtr *float64
	if math.IsNaN(kappa) {
		p.log.Warn("kappa undefined, storing NULL",
			zap.String("query_id", queryID),
			zap.Int("docs", len(docs)))
	} else {
		kappaPtr = &kappa
	}

	docIDs := make([]string, len(docs))
	for i, doc := range docs {
		docIDs[i] = strconv.FormatInt(doc.ID, 10)
	}

	id, err := p.store.InsertGroundTruth(ctx, memory.GroundTruth{
		QueryID:      queryID,
		Query:        query,
		ExpectedDocs: docIDs,
		Judge1Scores: j1,
		Judge2Scores: j2,
		Judge1Model:  p.model1,
		Judge2Model:  p.model2,
		Kappa:        kappaPtr,
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("dual-judge scores stored",
		zap.String("query_id", queryID),
		zap.Int("docs", len(docs)),
		zap.Float64("kappa", kappa))

	return &Outcome{
		GroundTruthID: id,
		Judge1Scores:  j1,
		Judge2Scores:  j2,
		Judge1Model:   p.model1,
		Judge2Model:   p.model2,
		Kappa:         kappaPtr,
	}, nil
}

// scoreOne grades one document with one judge, degrading to the neutral
// score when the provider fails past its retries.
func (p *Pipeline) scoreOne(ctx context.Context, scorer llm.Scorer, which, queryID string, docID int64, query, doc string) float64 {
	score, err := scorer.ScoreRelevance(ctx, query, doc)
	if err != nil {
		p.log.Warn("judge failed, recording neutral score",
			zap.String("judge", which),
			zap.String("query_id", queryID),
			zap.Int64("doc_id", docID),
			zap.Error(err))
		return NeutralScore
	}
	return score
}
