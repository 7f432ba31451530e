package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultRetrievalConfig(t *testing.T) {
	cfg := DefaultRetrievalConfig()

	if cfg.SemanticWeight != 0.7 || cfg.KeywordWeight != 0.3 {
		t.Errorf("standard weights = %v/%v, want 0.7/0.3", cfg.SemanticWeight, cfg.KeywordWeight)
	}
	if cfg.RRFK != 60 {
		t.Errorf("rrf_k = %d, want 60", cfg.RRFK)
	}
	if cfg.CandidateMultiplier != 2 {
		t.Errorf("candidate_multiplier = %d, want 2", cfg.CandidateMultiplier)
	}
	if cfg.GraphEnabled {
		t.Error("graph channel must be off by default")
	}
	if len(cfg.RelationalKeywords["en"]) == 0 || len(cfg.RelationalKeywords["de"]) == 0 {
		t.Error("default relational keyword lists missing")
	}
}

func TestLoadRetrievalConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("retrieval.semantic_weight", 0.5)
	viper.Set("retrieval.rrf_k", 30)
	viper.Set("retrieval.relational_keywords.en", []string{"linked"})

	cfg := LoadRetrievalConfig()
	if cfg.SemanticWeight != 0.5 {
		t.Errorf("semantic_weight = %v, want 0.5", cfg.SemanticWeight)
	}
	if cfg.KeywordWeight != 0.3 {
		t.Errorf("unset keyword_weight = %v, want default 0.3", cfg.KeywordWeight)
	}
	if cfg.RRFK != 30 {
		t.Errorf("rrf_k = %d, want 30", cfg.RRFK)
	}
	if len(cfg.RelationalKeywords["en"]) != 1 || cfg.RelationalKeywords["en"][0] != "linked" {
		t.Errorf("en keywords = %v", cfg.RelationalKeywords["en"])
	}
	if len(cfg.RelationalKeywords["de"]) == 0 {
		t.Error("de keywords must keep their defaults")
	}
}

func TestActiveWeights(t *testing.T) {
	cfg := DefaultRetrievalConfig()

	std := cfg.ActiveWeights(true)
	if std != cfg.StandardWeights() {
		t.Errorf("graph disabled must pin standard weights, got %+v", std)
	}

	cfg.GraphEnabled = true
	if got := cfg.ActiveWeights(false); got != cfg.GraphWeights {
		t.Errorf("graph weights = %+v", got)
	}
	if got := cfg.ActiveWeights(true); got != cfg.RelationalWeights {
		t.Errorf("relational weights = %+v", got)
	}
}

func TestWeightSetMap(t *testing.T) {
	m := (WeightSet{Semantic: 0.7, Keyword: 0.3}).Map()
	if len(m) != 2 || m["semantic"] != 0.7 || m["keyword"] != 0.3 {
		t.Errorf("two-channel map = %v", m)
	}
	if _, ok := m["graph"]; ok {
		t.Error("zero graph weight must not be echoed")
	}

	m = (WeightSet{Semantic: 0.4, Keyword: 0.2, Graph: 0.4}).Map()
	if m["graph"] != 0.4 {
		t.Errorf("graph weight missing: %v", m)
	}
}
