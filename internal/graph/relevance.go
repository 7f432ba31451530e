package graph

import (
	"math"
	"time"
)

// DefaultDecayTau is the Ebbinghaus time constant: one week of silence
// drops the decay term to 1/e.
const DefaultDecayTau = 168 * time.Hour

// Relevance blend: recency of the last access dominates, raw access
// frequency tempers it.
const (
	decayWeight     = 0.6
	frequencyWeight = 0.4
)

// Relevance scores an edge's memory strength in [0,1]. The decay term is
// exp(-age/tau) over the last_accessed age; the frequency term normalises
// access_count on a log scale that saturates at 100 accesses.
func Relevance(e *Edge, now time.Time, tau time.Duration) float64 {
	if tau <= 0 {
		tau = DefaultDecayTau
	}

	age := now.Sub(e.LastAccessed)
	if age < 0 {
		age = 0
	}
	decay := math.Exp(-age.Hours() / tau.Hours())

	frequency := math.Log(1+float64(e.AccessCount)) / math.Log(101)
	if frequency > 1 {
		frequency = 1
	}

	score := decayWeight*decay + frequencyWeight*frequency
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
