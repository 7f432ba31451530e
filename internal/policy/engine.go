/*
Package policy evaluates Rego guardrails against memory writes. Policies
live as .rego files in the configured directory; when none exist, every
write is allowed. Evaluation happens locally, no network calls.
*/
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/josephgoksu/MindWing/types"
)

// DefaultPackage is the Rego package queried for decisions.
const DefaultPackage = "mindwing.policy"

// Input describes one guarded write to the policies. Only shape metadata
// crosses the boundary, never the content itself.
type Input struct {
	Tool          string
	SessionID     string
	Speaker       string
	ContentLength int
	Importance    float64
}

// Decision is the outcome of evaluating one input.
type Decision struct {
	Allow      bool   `json:"allow"`
	DenyReason string `json:"deny_reason,omitempty"`
}

// Config holds engine construction options.
type Config struct {
	// Dir is the directory scanned for .rego files.
	Dir string
	// Package overrides the Rego package to query.
	Package string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Log defaults to a nop logger.
	Log *zap.Logger
}

// Engine evaluates loaded policies. Deny rules block the write; warn
// rules are logged and let it pass.
type Engine struct {
	policies []*PolicyFile
	pkg      string
	deny     *rego.PreparedEvalQuery
	warn     *rego.PreparedEvalQuery
	log      *zap.Logger
}

// NewEngine loads and compiles every policy in cfg.Dir. Queries are
// prepared once so per-write evaluation stays cheap.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	policies, err := NewLoader(cfg.Fs, cfg.Dir).LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}

	e := &Engine{policies: policies, pkg: cfg.Package, log: cfg.Log}
	if len(policies) == 0 {
		return e, nil
	}

	modules := make([]func(*rego.Rego), 0, len(policies))
	for _, p := range policies {
		modules = append(modules, rego.Module(p.Path, p.Content))
	}
	if e.deny, err = prepare(cfg.Package, "deny", modules); err != nil {
		return nil, err
	}
	if e.warn, err = prepare(cfg.Package, "warn", modules); err != nil {
		return nil, err
	}
	return e, nil
}

func prepare(pkg, rule string, modules []func(*rego.Rego)) (*rego.PreparedEvalQuery, error) {
	opts := append([]func(*rego.Rego){rego.Query(fmt.Sprintf("data.%s.%s", pkg, rule))}, modules...)
	q, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	return &q, nil
}

// PolicyCount reports how many policy files are loaded.
func (e *Engine) PolicyCount() int {
	return len(e.policies)
}

// Evaluate runs the input through every policy. Without policies the
// write is allowed.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Decision, error) {
	if e.deny == nil {
		return &Decision{Allow: true}, nil
	}

	in := input.asMap()

	if warnings, err := e.query(ctx, e.warn, in); err == nil {
		for _, w := range warnings {
			e.log.Warn("policy warning", zap.String("tool", input.Tool), zap.String("reason", w))
		}
	}

	reasons, err := e.query(ctx, e.deny, in)
	if err != nil {
		return nil, fmt.Errorf("evaluate policies: %w", err)
	}
	if len(reasons) > 0 {
		return &Decision{Allow: false, DenyReason: strings.Join(reasons, "; ")}, nil
	}
	return &Decision{Allow: true}, nil
}

// Check evaluates the input and converts a deny into the VALIDATION error
// the write path returns to the client.
func (e *Engine) Check(ctx context.Context, input Input) error {
	decision, err := e.Evaluate(ctx, input)
	if err != nil {
		return types.NewMCPError(types.ErrInternal, "policy evaluation failed",
			map[string]interface{}{"cause": err.Error()})
	}
	if !decision.Allow {
		return types.NewMCPError(types.ErrValidation,
			fmt.Sprintf("write blocked by policy: %s", decision.DenyReason),
			map[string]interface{}{"tool": input.Tool})
	}
	return nil
}

// query evaluates one prepared rule set and collects its string values,
// sorted for stable output.
func (e *Engine) query(ctx context.Context, q *rego.PreparedEvalQuery, input map[string]interface{}) ([]string, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, v := range values {
				if s, ok := v.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// asMap fixes the exact shape policies see as input.
func (in Input) asMap() map[string]interface{} {
	return map[string]interface{}{
		"tool":           in.Tool,
		"session_id":     in.SessionID,
		"speaker":        in.Speaker,
		"content_length": in.ContentLength,
		"importance":     in.Importance,
	}
}
