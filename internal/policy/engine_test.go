package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/josephgoksu/MindWing/types"
)

const lengthPolicy = `package mindwing.policy

import rego.v1

deny contains msg if {
	input.tool == "store_raw_dialogue"
	input.content_length > 2000
	msg := sprintf("dialogue of %d chars exceeds the 2000 char limit", [input.content_length])
}
`

const speakerPolicy = `package mindwing.policy

import rego.v1

deny contains msg if {
	input.tool == "store_raw_dialogue"
	input.speaker == "system"
	msg := "speaker system is not ingestable"
}
`

const importancePolicy = `package mindwing.policy

import rego.v1

deny contains msg if {
	input.tool == "update_working_memory"
	input.importance > 1
	msg := "importance above 1.0"
}
`

const warnPolicy = `package mindwing.policy

import rego.v1

warn contains msg if {
	input.content_length > 100
	msg := "long content, consider splitting"
}
`

func newTestEngine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, "/policies/"+name, []byte(content), 0644); err != nil {
			t.Fatalf("write policy: %v", err)
		}
	}
	engine, err := NewEngine(Config{Dir: "/policies", Fs: fs})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestEvaluateNoPolicies(t *testing.T) {
	engine := newTestEngine(t, nil)
	if engine.PolicyCount() != 0 {
		t.Fatalf("want 0 policies, got %d", engine.PolicyCount())
	}

	decision, err := engine.Evaluate(context.Background(), Input{Tool: "store_raw_dialogue", ContentLength: 1 << 20})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Allow || decision.DenyReason != "" {
		t.Fatalf("empty engine must allow: %+v", decision)
	}
}

func TestEvaluateDeny(t *testing.T) {
	engine := newTestEngine(t, map[string]string{"length.rego": lengthPolicy})

	decision, err := engine.Evaluate(context.Background(), Input{
		Tool:          "store_raw_dialogue",
		SessionID:     "s1",
		Speaker:       "user",
		ContentLength: 4096,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Allow {
		t.Fatalf("want deny, got %+v", decision)
	}
	want := "dialogue of 4096 chars exceeds the 2000 char limit"
	if decision.DenyReason != want {
		t.Fatalf("reason = %q, want %q", decision.DenyReason, want)
	}
}

func TestEvaluateAllow(t *testing.T) {
	engine := newTestEngine(t, map[string]string{"length.rego": lengthPolicy})

	tests := []struct {
		name  string
		input Input
	}{
		{"under limit", Input{Tool: "store_raw_dialogue", ContentLength: 100}},
		{"other tool", Input{Tool: "update_working_memory", ContentLength: 4096}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := engine.Evaluate(context.Background(), tc.input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if !decision.Allow {
				t.Fatalf("want allow, got %+v", decision)
			}
		})
	}
}

func TestEvaluateJoinsReasons(t *testing.T) {
	engine := newTestEngine(t, map[string]string{
		"length.rego":  lengthPolicy,
		"speaker.rego": speakerPolicy,
	})
	if engine.PolicyCount() != 2 {
		t.Fatalf("want 2 policies, got %d", engine.PolicyCount())
	}

	decision, err := engine.Evaluate(context.Background(), Input{
		Tool:          "store_raw_dialogue",
		Speaker:       "system",
		ContentLength: 4096,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := "dialogue of 4096 chars exceeds the 2000 char limit; speaker system is not ingestable"
	if decision.Allow || decision.DenyReason != want {
		t.Fatalf("decision = %+v, want reason %q", decision, want)
	}
}

func TestEvaluateImportanceGuard(t *testing.T) {
	engine := newTestEngine(t, map[string]string{"importance.rego": importancePolicy})

	decision, err := engine.Evaluate(context.Background(), Input{Tool: "update_working_memory", Importance: 1.5})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Allow {
		t.Fatalf("want deny for importance 1.5, got %+v", decision)
	}

	decision, err = engine.Evaluate(context.Background(), Input{Tool: "update_working_memory", Importance: 0.9})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("want allow for importance 0.9, got %+v", decision)
	}
}

func TestEvaluateWarnDoesNotBlock(t *testing.T) {
	engine := newTestEngine(t, map[string]string{"warn.rego": warnPolicy})

	decision, err := engine.Evaluate(context.Background(), Input{Tool: "store_raw_dialogue", ContentLength: 500})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Allow || decision.DenyReason != "" {
		t.Fatalf("warn rules must not block: %+v", decision)
	}
}

func TestEvaluateIgnoresOtherPackages(t *testing.T) {
	other := `package other.rules

import rego.v1

deny contains msg if {
	msg := "always"
}
`
	engine := newTestEngine(t, map[string]string{"other.rego": other})

	decision, err := engine.Evaluate(context.Background(), Input{Tool: "store_raw_dialogue"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("rules outside %s must not fire: %+v", DefaultPackage, decision)
	}
}

func TestCheckDenyIsValidation(t *testing.T) {
	engine := newTestEngine(t, map[string]string{"length.rego": lengthPolicy})

	err := engine.Check(context.Background(), Input{Tool: "store_raw_dialogue", ContentLength: 4096})
	var mcpErr *types.MCPError
	if !errors.As(err, &mcpErr) || mcpErr.Code != types.ErrValidation {
		t.Fatalf("want VALIDATION error, got %v", err)
	}
	if !strings.Contains(mcpErr.Message, "write blocked by policy") {
		t.Fatalf("message = %q", mcpErr.Message)
	}
	if mcpErr.Details["tool"] != "store_raw_dialogue" {
		t.Fatalf("details = %v", mcpErr.Details)
	}
}

func TestCheckAllows(t *testing.T) {
	engine := newTestEngine(t, map[string]string{"length.rego": lengthPolicy})
	if err := engine.Check(context.Background(), Input{Tool: "store_raw_dialogue", ContentLength: 10}); err != nil {
		t.Fatalf("want nil error, got %v", err)
	}
}

func TestNewEngineBadPolicy(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/policies/broken.rego", []byte("package mindwing.policy\n\ndeny {"), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := NewEngine(Config{Dir: "/policies", Fs: fs}); err == nil {
		t.Fatal("want compile error for broken policy")
	}
}
