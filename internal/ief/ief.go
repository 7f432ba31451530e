// Package ief computes the integrative evaluation function: a single
// relevance score per edge fusing memory strength, semantic similarity,
// recency, constitutive weight and the dissonance penalty. Everything here
// is pure; identical inputs yield bit-identical outputs.
package ief

import (
	"math"
	"time"
)

// Neutral is the fallback for the similarity and recency components when
// their inputs are absent.
const Neutral = 0.5

// PenaltyPending is subtracted when the edge sits in an unresolved
// dissonance review.
const PenaltyPending = 0.1

// constitutiveBoost lifts identity-defining edges above the usual ceiling.
const constitutiveBoost = 1.5

// recencyHalfLifeDays shapes the recency boost exp(-age/30d).
const recencyHalfLifeDays = 30.0

// EdgeData carries the per-edge inputs. Relevance comes from the graph's
// decay function; SourceVec/TargetVec are the insight embeddings anchored
// at the edge endpoints' vector ids, nil when an endpoint has none.
type EdgeData struct {
	EdgeID     string
	Relevance  float64
	ModifiedAt time.Time
	EdgeType   string
	SourceVec  []float32
	TargetVec  []float32
}

// Components is the per-edge breakdown of the fused score.
type Components struct {
	RelevanceScore     float64
	SemanticSimilarity float64
	RecencyBoost       float64
	ConstitutiveWeight float64
	NuancePenalty      float64
}

// Weights for the fusion. Constitutive weight multiplies a 0..1.5 factor;
// the others weight components in [0,1].
type Weights struct {
	Relevance    float64
	Similarity   float64
	Recency      float64
	Constitutive float64
}

// DefaultWeights is the calibrated fusion.
var DefaultWeights = Weights{Relevance: 0.30, Similarity: 0.25, Recency: 0.20, Constitutive: 0.25}

// Result bundles the fused score with its breakdown.
type Result struct {
	Score      float64
	Components Components
	Weights    Weights
}

// Score fuses the edge components. The similarity anchor prefers the
// source endpoint's embedding and falls back to the target's; with neither
// present, or with a dimension mismatch, the component is neutral.
func Score(edge EdgeData, queryEmbedding []float32, pending map[string]struct{}, now time.Time) Result {
	c := Components{
		RelevanceScore:     clamp01(edge.Relevance),
		SemanticSimilarity: similarity(edge, queryEmbedding),
		RecencyBoost:       recency(edge.ModifiedAt, now),
		ConstitutiveWeight: 1.0,
	}
	if edge.EdgeType == "constitutive" {
		c.ConstitutiveWeight = constitutiveBoost
	}
	if _, ok := pending[edge.EdgeID]; ok {
		c.NuancePenalty = PenaltyPending
	}

	w := DefaultWeights
	score := c.RelevanceScore*w.Relevance +
		c.SemanticSimilarity*w.Similarity +
		c.RecencyBoost*w.Recency +
		c.ConstitutiveWeight*w.Constitutive -
		c.NuancePenalty

	if score < 0 {
		score = 0
	}
	if score > constitutiveBoost {
		score = constitutiveBoost
	}

	return Result{Score: score, Components: c, Weights: w}
}

func similarity(edge EdgeData, queryEmbedding []float32) float64 {
	anchor := edge.SourceVec
	if len(anchor) == 0 {
		anchor = edge.TargetVec
	}
	if len(anchor) == 0 || len(queryEmbedding) == 0 || len(anchor) != len(queryEmbedding) {
		return Neutral
	}
	// Rescale cosine [-1,1] into [0,1].
	return (cosine(queryEmbedding, anchor) + 1) / 2
}

func recency(modifiedAt, now time.Time) float64 {
	if modifiedAt.IsZero() {
		return Neutral
	}
	days := now.Sub(modifiedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / recencyHalfLifeDays)
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		af := float64(a[i])
		bf := float64(b[i])
		dot += af * bf
		normA += af * af
		normB += bf * bf
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
