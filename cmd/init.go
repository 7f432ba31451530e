/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/MindWing/internal/config"
	"github.com/josephgoksu/MindWing/internal/eval"
)

var initForce bool

const configTemplate = `# MindWing configuration. Every key below shows its default; uncomment to
# override. Environment variables win over this file (MINDWING_VERBOSE=true,
# MINDWING_DB_PATH=/tmp/memory.db, ...).

# database:
#   path: ~/.mindwing/memory.db

# embedding:
#   provider: openai          # openai | ollama | gemini
#   model: text-embedding-3-small
#   dimensions: 1536
#   base_url: ""              # only needed for ollama or a proxy

# judges:
#   judge1:
#     provider: openai        # openai | anthropic | gemini | ollama
#     model: gpt-4o-mini
#   judge2:
#     provider: anthropic
#     model: claude-3-5-haiku-20241022

# working_memory:
#   capacity: 10
#   critical_threshold: 0.8   # items at or above this never get evicted

# graph:
#   decay_tau_hours: 168      # memory strength halves roughly weekly
#   decay_interval_minutes: 30

# timeouts:
#   hybrid_search_ms: 1000
#   traversal_ms: 100
#   path_ms: 400
#   provider_ms: 30000

# retry:
#   max_attempts: 4
#   base_delay_ms: 1000

# telemetry:
#   enabled: false            # anonymous usage counts, off unless you opt in
#   api_key: ""

# policy:
#   dir: ~/.mindwing/policies
`

const envTemplate = `# Provider credentials for MindWing. Copy to .env or export directly.
# Only the providers you configure need a key; ollama needs none.
OPENAI_API_KEY=
ANTHROPIC_API_KEY=
# GOOGLE_API_KEY=
`

const starterPolicy = `package mindwing.policy

import rego.v1

# Guardrails evaluated before every memory write. Deny rules block the
# write with the given reason; warn rules only log. Input fields:
# tool, session_id, speaker, content_length, importance.

deny contains msg if {
	input.tool == "store_raw_dialogue"
	input.content_length > 1048576
	msg := sprintf("dialogue of %d bytes exceeds the 1 MiB per-turn cap", [input.content_length])
}
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the MindWing data directory",
	Long: `Create ~/.mindwing with everything the server needs:

  • memory.db    - SQLite database holding all memory tiers and the graph
  • config.yaml  - commented configuration template
  • .env.example - provider API key names
  • policies/    - Rego guardrails evaluated before memory writes

Existing files are left alone unless --force is given. The database schema
is created (or migrated) either way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := config.DefaultDataDir()
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		policyDir := cfg.Policy.Dir
		if policyDir == "" {
			policyDir = filepath.Join(dataDir, "policies")
		}
		if err := os.MkdirAll(policyDir, 0o755); err != nil {
			return fmt.Errorf("create policy directory: %w", err)
		}

		files := []struct {
			path    string
			content string
		}{
			{filepath.Join(dataDir, "config.yaml"), configTemplate},
			{filepath.Join(dataDir, ".env.example"), envTemplate},
			{filepath.Join(policyDir, "guardrails.rego"), starterPolicy},
		}
		for _, f := range files {
			if err := eval.WriteFileIfMissing(f.path, f.content, initForce); err != nil {
				return fmt.Errorf("write %s: %w", f.path, err)
			}
		}

		// Opening the store creates or migrates the schema.
		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		if err := store.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}

		fmt.Println("✓ MindWing initialized")
		fmt.Println("")
		fmt.Println("Created:")
		fmt.Printf("  • %s\n", cfg.Database.Path)
		fmt.Printf("  • %s\n", filepath.Join(dataDir, "config.yaml"))
		fmt.Printf("  • %s\n", filepath.Join(dataDir, ".env.example"))
		fmt.Printf("  • %s\n", filepath.Join(policyDir, "guardrails.rego"))
		fmt.Println("")
		fmt.Println("Next steps:")
		fmt.Println("  export OPENAI_API_KEY=...   (or fill in .env)")
		fmt.Println("  mindwing mcp                start the MCP server on stdio")
		fmt.Println("  mindwing search \"query\"     one-shot hybrid search")

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config and policy templates")
	rootCmd.AddCommand(initCmd)
}
