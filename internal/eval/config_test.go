package eval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write suite: %v", err)
	}
	return path
}

func TestLoadSuite(t *testing.T) {
	path := writeSuite(t, `version: 1
name: smoke
cases:
  - id: C1
    query: which cache backs sessions
    notes: redis doc wins
    docs:
      - content: sessions live in redis
      - id: 7
        content: the site is static
  - id: C2
    query: broker decision
    doc_ids: [12, 31]
`)

	suite, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if suite.Version != 1 || suite.Name != "smoke" {
		t.Fatalf("header mismatch: %+v", suite)
	}
	if len(suite.Cases) != 2 {
		t.Fatalf("want 2 cases, got %d", len(suite.Cases))
	}

	c1 := suite.Cases[0]
	if c1.ID != "C1" || c1.Notes != "redis doc wins" || len(c1.Docs) != 2 {
		t.Fatalf("case C1 mismatch: %+v", c1)
	}
	if c1.Docs[1].ID != 7 || c1.Docs[1].Content != "the site is static" {
		t.Fatalf("inline doc mismatch: %+v", c1.Docs[1])
	}

	c2 := suite.Cases[1]
	if len(c2.DocIDs) != 2 || c2.DocIDs[0] != 12 || c2.DocIDs[1] != 31 {
		t.Fatalf("doc_ids mismatch: %+v", c2)
	}
}

func TestLoadSuiteMissingFile(t *testing.T) {
	_, err := LoadSuite(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read suite") {
		t.Fatalf("want read error, got %v", err)
	}
}

func TestLoadSuiteBadYAML(t *testing.T) {
	path := writeSuite(t, "cases: [")
	_, err := LoadSuite(path)
	if err == nil || !strings.Contains(err.Error(), "parse suite") {
		t.Fatalf("want parse error, got %v", err)
	}
}

func TestSuiteValidate(t *testing.T) {
	doc := CaseDoc{Content: "some doc"}
	tests := []struct {
		name  string
		suite Suite
		want  string
	}{
		{"empty", Suite{}, "no cases"},
		{"missing id", Suite{Cases: []Case{{Query: "q", Docs: []CaseDoc{doc}}}}, "missing id"},
		{"duplicate id", Suite{Cases: []Case{
			{ID: "C1", Query: "q", Docs: []CaseDoc{doc}},
			{ID: "C1", Query: "q2", Docs: []CaseDoc{doc}},
		}}, "duplicate id"},
		{"missing query", Suite{Cases: []Case{{ID: "C1", Docs: []CaseDoc{doc}}}}, "missing query"},
		{"no documents", Suite{Cases: []Case{{ID: "C1", Query: "q"}}}, "no documents"},
		{"blank doc", Suite{Cases: []Case{{ID: "C1", Query: "q", Docs: []CaseDoc{{Content: "  "}}}}}, "no content"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.suite.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestWriteFileIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")

	if err := WriteFileIfMissing(path, "first", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFileIfMissing(path, "second", false); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "first" {
		t.Fatalf("existing file overwritten without force: %q", data)
	}

	if err := WriteFileIfMissing(path, "second", true); err != nil {
		t.Fatalf("force write: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Fatalf("force did not overwrite: %q", data)
	}
}

func TestDefaultSuiteTemplateParses(t *testing.T) {
	var suite Suite
	if err := yaml.Unmarshal([]byte(DefaultSuiteTemplate), &suite); err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	if err := suite.Validate(); err != nil {
		t.Fatalf("template does not validate: %v", err)
	}
	if len(suite.Cases) != 2 {
		t.Fatalf("want 2 starter cases, got %d", len(suite.Cases))
	}
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		input    string
		provider string
		model    string
	}{
		{"openai:gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"gpt-4o-mini", "", "gpt-4o-mini"},
		{"ollama:qwen3:4b", "ollama", "qwen3:4b"},
	}
	for _, tc := range tests {
		provider, model := ParseModel(tc.input)
		if provider != tc.provider || model != tc.model {
			t.Errorf("ParseModel(%q) = (%q, %q), want (%q, %q)",
				tc.input, provider, model, tc.provider, tc.model)
		}
	}
}
