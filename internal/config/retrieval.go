package config

import (
	"github.com/spf13/viper"
)

// WeightSet is one fusion calibration. Weights apply to the reciprocal-rank
// contributions of the dense, lexical, and graph candidate lists.
type WeightSet struct {
	Semantic float64 `json:"semantic"`
	Keyword  float64 `json:"keyword"`
	Graph    float64 `json:"graph,omitempty"`
}

// Map renders the set in the wire shape echoed by hybrid_search.
func (w WeightSet) Map() map[string]float64 {
	m := map[string]float64{
		"semantic": w.Semantic,
		"keyword":  w.Keyword,
	}
	if w.Graph > 0 {
		m["graph"] = w.Graph
	}
	return m
}

// RetrievalConfig holds the hybrid search calibration.
type RetrievalConfig struct {
	// Standard two-channel weights.
	SemanticWeight float64 `mapstructure:"semantic_weight"`
	KeywordWeight  float64 `mapstructure:"keyword_weight"`

	// Graph channel settings.
	GraphEnabled      bool      `mapstructure:"graph_enabled"`
	GraphWeights      WeightSet `mapstructure:"graph_weights"`
	RelationalWeights WeightSet `mapstructure:"relational_weights"`

	// Fusion constant and candidate pool sizing.
	RRFK                int `mapstructure:"rrf_k"`
	CandidateMultiplier int `mapstructure:"candidate_multiplier"`

	// Relational keyword lists per locale, matched case-folded.
	RelationalKeywords map[string][]string `mapstructure:"relational_keywords"`
}

// DefaultRetrievalConfig returns the calibration tuned for conversational
// memory: semantic recall dominates, keyword match anchors exact terms.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,

		GraphEnabled:      false,
		GraphWeights:      WeightSet{Semantic: 0.6, Keyword: 0.2, Graph: 0.2},
		RelationalWeights: WeightSet{Semantic: 0.4, Keyword: 0.2, Graph: 0.4},

		RRFK:                60,
		CandidateMultiplier: 2,

		RelationalKeywords: map[string][]string{
			"en": {"related", "relationship", "connection", "connected", "depends", "dependency", "linked", "uses", "between"},
			"de": {"beziehung", "verbindung", "zusammenhang", "verwandt", "abhängig", "verknüpft", "bezug", "zwischen"},
		},
	}
}

// LoadRetrievalConfig loads the retrieval calibration from Viper with defaults.
func LoadRetrievalConfig() RetrievalConfig {
	defaults := DefaultRetrievalConfig()

	cfg := RetrievalConfig{
		SemanticWeight: getFloat64WithDefault("retrieval.semantic_weight", defaults.SemanticWeight),
		KeywordWeight:  getFloat64WithDefault("retrieval.keyword_weight", defaults.KeywordWeight),

		GraphEnabled: getBoolWithDefault("retrieval.graph_enabled", defaults.GraphEnabled),
		GraphWeights: WeightSet{
			Semantic: getFloat64WithDefault("retrieval.graph_weights.semantic", defaults.GraphWeights.Semantic),
			Keyword:  getFloat64WithDefault("retrieval.graph_weights.keyword", defaults.GraphWeights.Keyword),
			Graph:    getFloat64WithDefault("retrieval.graph_weights.graph", defaults.GraphWeights.Graph),
		},
		RelationalWeights: WeightSet{
			Semantic: getFloat64WithDefault("retrieval.relational_weights.semantic", defaults.RelationalWeights.Semantic),
			Keyword:  getFloat64WithDefault("retrieval.relational_weights.keyword", defaults.RelationalWeights.Keyword),
			Graph:    getFloat64WithDefault("retrieval.relational_weights.graph", defaults.RelationalWeights.Graph),
		},

		RRFK:                getIntWithDefault("retrieval.rrf_k", defaults.RRFK),
		CandidateMultiplier: getIntWithDefault("retrieval.candidate_multiplier", defaults.CandidateMultiplier),

		RelationalKeywords: defaults.RelationalKeywords,
	}

	for _, locale := range []string{"en", "de"} {
		key := "retrieval.relational_keywords." + locale
		if viper.IsSet(key) {
			cfg.RelationalKeywords[locale] = viper.GetStringSlice(key)
		}
	}
	return cfg
}

// StandardWeights is the two-channel calibration used when the graph
// channel does not participate.
func (c RetrievalConfig) StandardWeights() WeightSet {
	return WeightSet{Semantic: c.SemanticWeight, Keyword: c.KeywordWeight}
}

// ActiveWeights picks the calibration for a query. Relational queries only
// shift weights when the graph channel participates.
func (c RetrievalConfig) ActiveWeights(relational bool) WeightSet {
	if !c.GraphEnabled {
		return c.StandardWeights()
	}
	if relational {
		return c.RelationalWeights
	}
	return c.GraphWeights
}

// Helper functions for Viper with defaults

func getFloat64WithDefault(key string, defaultVal float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return defaultVal
}

func getIntWithDefault(key string, defaultVal int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return defaultVal
}

func getBoolWithDefault(key string, defaultVal bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return defaultVal
}
