package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/MindWing/types"
)

// Scorer grades how relevant a document is to a query on [0, 1].
type Scorer interface {
	ScoreRelevance(ctx context.Context, query, doc string) (float64, error)
}

// scorePrompt anchors the scale so independently configured judges grade
// comparably. The bare-decimal demand keeps parsing trivial.
const scorePrompt = `You are a relevance judge. Score how relevant the document is to the query on a scale from 0.0 to 1.0:
- 0.0 means completely irrelevant
- 0.5 means moderately relevant
- 1.0 means perfectly relevant

Respond with a single decimal number and nothing else.`

// chatFactory allows injection for testing.
var chatFactory = NewChatModel

// JudgeScorer wraps an Eino chat model as a deterministic relevance judge:
// temperature zero, fixed prompt, retried per the shared policy.
type JudgeScorer struct {
	model    model.BaseChatModel
	provider Provider
	name     string
	policy   Policy
	timeout  time.Duration
	record   RecordFunc
}

// ScorerOptions configures NewScorer beyond the provider config.
type ScorerOptions struct {
	Policy  Policy
	Timeout time.Duration
	Record  RecordFunc
}

// NewScorer builds a judge over the configured chat model.
func NewScorer(ctx context.Context, cfg Config, opts ScorerOptions) (*JudgeScorer, error) {
	chat, err := chatFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create judge model: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &JudgeScorer{
		model:    chat,
		provider: cfg.Provider,
		name:     cfg.Model,
		policy:   opts.Policy,
		timeout:  opts.Timeout,
		record:   opts.Record,
	}, nil
}

// Model reports the judge's model identifier for ground-truth rows.
func (s *JudgeScorer) Model() string {
	return s.name
}

// ScoreRelevance asks the judge for a relevance grade. Transient provider
// failures retry; exhausted retries or an unparseable reply surface as an
// EVALUATION error.
func (s *JudgeScorer) ScoreRelevance(ctx context.Context, query, doc string) (float64, error) {
	if strings.TrimSpace(query) == "" {
		return 0, types.ValidationError("query", "query must not be blank")
	}
	if strings.TrimSpace(doc) == "" {
		return 0, types.ValidationError("doc", "document must not be blank")
	}

	messages := []*schema.Message{
		schema.SystemMessage(scorePrompt),
		schema.UserMessage(fmt.Sprintf("Query: %s\n\nDocument: %s", query, doc)),
	}

	var score float64
	err := s.policy.Do(ctx, "judge score", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.model.Generate(callCtx, messages, model.WithTemperature(0))
		if err != nil {
			return err
		}
		parsed, err := parseScore(resp.Content)
		if err != nil {
			return err
		}
		score = parsed
		return nil
	})
	if err != nil {
		return 0, types.NewMCPError(types.ErrEvaluation, "judge scoring failed", map[string]interface{}{
			"provider": string(s.provider),
			"model":    s.name,
			"cause":    err.Error(),
		})
	}

	if s.record != nil {
		tokens := EstimateTokens(scorePrompt) + EstimateTokens(query) + EstimateTokens(doc)
		s.record(ctx, CostEvent{
			Provider:  string(s.provider),
			Operation: "judge_score",
			Model:     s.name,
			Tokens:    tokens,
			CostUSD:   ChatCost(s.name, tokens, 4),
			QueryID:   QueryIDFrom(ctx),
		})
	}
	return score, nil
}

// parseScore extracts the first decimal in [0,1] from a judge reply. The
// prompt demands a bare number, but judges still wrap it occasionally
// ("Score: 0.8"), so every numeric token is considered in order.
func parseScore(reply string) (float64, error) {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.Trim(f, "."), 64)
		if err != nil {
			continue
		}
		if v >= 0 && v <= 1 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no score in reply %q", truncateReply(reply))
}

func truncateReply(reply string) string {
	reply = strings.TrimSpace(reply)
	if len(reply) > 80 {
		return reply[:80] + "..."
	}
	return reply
}
