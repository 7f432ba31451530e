package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/josephgoksu/MindWing/types"
)

// Embedder turns text into a vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// CostEvent describes one billable provider call. The MCP layer maps it
// into the cost ledger.
type CostEvent struct {
	Provider  string
	Operation string
	Model     string
	Tokens    int
	CostUSD   float64
	QueryID   string
}

// RecordFunc receives one CostEvent per provider call. May be nil.
type RecordFunc func(ctx context.Context, ev CostEvent)

type queryIDKey struct{}

// WithQueryID tags the context so provider calls underneath it book their
// cost against the given query.
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, queryID)
}

// QueryIDFrom reads the cost-attribution query id, empty when untagged.
func QueryIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(queryIDKey{}).(string)
	return s
}

// embeddingFactory allows injection for testing.
var embeddingFactory = NewEmbeddingModel

// ProviderEmbedder wraps an Eino embedding component with the shared
// retry policy, a per-call timeout, dimension enforcement, and cost
// bookkeeping.
type ProviderEmbedder struct {
	component embedding.Embedder
	provider  Provider
	model     string
	dims      int
	policy    Policy
	timeout   time.Duration
	record    RecordFunc
}

// EmbedderOptions configures NewEmbedder beyond the provider config.
type EmbedderOptions struct {
	Dimensions int
	Policy     Policy
	Timeout    time.Duration
	Record     RecordFunc
}

// NewEmbedder builds the production Embedder for the configured provider.
func NewEmbedder(ctx context.Context, cfg Config, opts EmbedderOptions) (*ProviderEmbedder, error) {
	component, err := embeddingFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding model: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &ProviderEmbedder{
		component: component,
		provider:  cfg.Provider,
		model:     cfg.Model,
		dims:      opts.Dimensions,
		policy:    opts.Policy,
		timeout:   opts.Timeout,
		record:    opts.Record,
	}, nil
}

// EmbedText embeds one text. Transient provider failures retry per the
// policy; an exhausted schedule or a wrong-dimension vector surfaces as an
// EMBEDDING error.
func (e *ProviderEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ValidationError("text", "text to embed must not be blank")
	}

	var vec []float32
	err := e.policy.Do(ctx, "embed", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		raw, err := e.component.EmbedStrings(callCtx, []string{text})
		if err != nil {
			return err
		}
		if len(raw) == 0 || len(raw[0]) == 0 {
			return fmt.Errorf("no embedding returned")
		}

		vec = make([]float32, len(raw[0]))
		for i, v := range raw[0] {
			vec[i] = float32(v)
		}
		return nil
	})
	if err != nil {
		return nil, types.NewMCPError(types.ErrEmbedding, "embedding provider failed", map[string]interface{}{
			"provider": string(e.provider),
			"cause":    err.Error(),
		})
	}

	if e.dims > 0 && len(vec) != e.dims {
		return nil, types.NewMCPError(types.ErrEmbedding,
			fmt.Sprintf("embedding dimension mismatch: got %d, want %d", len(vec), e.dims), nil)
	}

	if e.record != nil {
		tokens := EstimateTokens(text)
		e.record(ctx, CostEvent{
			Provider:  string(e.provider),
			Operation: "embedding",
			Model:     e.model,
			Tokens:    tokens,
			CostUSD:   EmbeddingCost(e.model, tokens),
			QueryID:   QueryIDFrom(ctx),
		})
	}
	return vec, nil
}

// Dimensions reports the enforced vector width, 0 when unchecked.
func (e *ProviderEmbedder) Dimensions() int {
	return e.dims
}
