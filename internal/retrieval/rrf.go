// Package retrieval implements the hybrid search engine: concurrent dense,
// lexical, and graph candidate channels fused with weighted reciprocal
// rank fusion.
package retrieval

import (
	"sort"

	"github.com/josephgoksu/MindWing/internal/memory"
)

// Channel names, matching the weight keys echoed on the wire.
const (
	ChannelSemantic = "semantic"
	ChannelKeyword  = "keyword"
	ChannelGraph    = "graph"
)

// DefaultRRFK is the reciprocal rank fusion constant.
const DefaultRRFK = 60

// Channel is one ranked candidate list entering the fusion.
type Channel struct {
	Name   string
	Weight float64
	Ranked []memory.ScoredInsight
}

// FuseRRF merges ranked channels with weighted reciprocal rank fusion:
// score(d) = Σᵢ wᵢ/(k + rankᵢ(d)) over the channels listing d, ranks
// 1-based. Ties break by higher dense score, then lower id. The returned
// scores are the fused values.
func FuseRRF(channels []Channel, k int) []memory.ScoredInsight {
	if k <= 0 {
		k = DefaultRRFK
	}

	type acc struct {
		insight memory.Insight
		fused   float64
		dense   float64
	}
	byID := make(map[int64]*acc)

	for _, ch := range channels {
		for i, doc := range ch.Ranked {
			a, ok := byID[doc.ID]
			if !ok {
				a = &acc{insight: doc.Insight}
				byID[doc.ID] = a
			}
			a.fused += ch.Weight / float64(k+i+1)
			if ch.Name == ChannelSemantic {
				a.dense = doc.Score
			}
		}
	}

	fused := make([]memory.ScoredInsight, 0, len(byID))
	denseOf := make(map[int64]float64, len(byID))
	for id, a := range byID {
		fused = append(fused, memory.ScoredInsight{Insight: a.insight, Score: a.fused})
		denseOf[id] = a.dense
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		di, dj := denseOf[fused[i].ID], denseOf[fused[j].ID]
		if di != dj {
			return di > dj
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}
