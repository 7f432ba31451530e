package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/josephgoksu/MindWing/internal/judge"
	"github.com/josephgoksu/MindWing/internal/memory"
)

// Runner scores suites through the dual-judge pipeline and books the spend
// against each case's query id.
type Runner struct {
	pipeline *judge.Pipeline
	store    *memory.Store
	log      *zap.Logger
}

// NewRunner wires a runner. The store must be the one the pipeline writes
// ground truth to, so the cost roll-up sees the same ledger.
func NewRunner(pipeline *judge.Pipeline, store *memory.Store, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{pipeline: pipeline, store: store, log: log}
}

// Run scores every case in the suite. A failing case is recorded in its
// result and the run continues; only a dead context or an unusable suite
// aborts the whole run.
func (r *Runner) Run(ctx context.Context, suite Suite) (*Results, error) {
	if err := suite.Validate(); err != nil {
		return nil, err
	}

	results := &Results{
		Suite:       suite.Name,
		GeneratedAt: time.Now().UTC(),
	}
	queryIDs := make([]string, 0, len(suite.Cases))

	for _, c := range suite.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		queryID := fmt.Sprintf("eval-%s-%s", c.ID, uuid.NewString())
		queryIDs = append(queryIDs, queryID)
		cr := CaseResult{CaseID: c.ID, QueryID: queryID}

		docs, err := r.resolveDocs(ctx, c)
		if err == nil {
			var outcome *judge.Outcome
			outcome, err = r.pipeline.Run(ctx, queryID, c.Query, docs)
			if err == nil {
				cr.Docs = len(docs)
				cr.Kappa = outcome.Kappa
				cr.GroundTruthID = outcome.GroundTruthID
				results.Judge1Model = outcome.Judge1Model
				results.Judge2Model = outcome.Judge2Model
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cr.Err = err.Error()
			r.log.Warn("eval case failed", zap.String("case", c.ID), zap.Error(err))
		}
		results.Cases = append(results.Cases, cr)
	}

	costs, err := r.store.SummarizeCostsForQueries(ctx, queryIDs)
	if err != nil {
		return nil, fmt.Errorf("summarize run costs: %w", err)
	}
	results.Costs = costs
	for _, cs := range costs {
		results.CostUSD += cs.CostUSD
	}
	return results, nil
}

// resolveDocs expands a case into judge documents. Referenced ids must
// exist in the insight tier.
func (r *Runner) resolveDocs(ctx context.Context, c Case) ([]judge.Doc, error) {
	docs := make([]judge.Doc, 0, len(c.Docs)+len(c.DocIDs))
	for i, d := range c.Docs {
		id := d.ID
		if id == 0 {
			id = int64(i + 1)
		}
		docs = append(docs, judge.Doc{ID: id, Content: d.Content})
	}
	for _, id := range c.DocIDs {
		insight, ok, err := r.store.GetInsight(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load insight %d: %w", id, err)
		}
		if !ok {
			return nil, fmt.Errorf("insight %d not found", id)
		}
		docs = append(docs, judge.Doc{ID: insight.ID, Content: insight.Content})
	}
	return docs, nil
}
