// Package judge runs the dual-judge relevance pipeline: two independently
// configured scorers grade every document, and Cohen's kappa measures
// their agreement for the ground-truth record.
package judge

import "math"

// RelevanceThreshold binarises judge scores for the agreement statistic:
// above it a document counts as relevant.
const RelevanceThreshold = 0.5

// Kappa computes Cohen's kappa between two judges' scores, binarised at
// RelevanceThreshold. It returns NaN when both judges are unanimous on a
// single class, which makes expected agreement 1 and the statistic
// undefined.
func Kappa(judge1, judge2 []float64) float64 {
	n := len(judge1)
	if n == 0 || n != len(judge2) {
		return math.NaN()
	}

	var agree, pos1, pos2 int
	for i := 0; i < n; i++ {
		b1 := judge1[i] > RelevanceThreshold
		b2 := judge2[i] > RelevanceThreshold
		if b1 == b2 {
			agree++
		}
		if b1 {
			pos1++
		}
		if b2 {
			pos2++
		}
	}

	po := float64(agree) / float64(n)
	p1 := float64(pos1) / float64(n)
	p2 := float64(pos2) / float64(n)
	pe := p1*p2 + (1-p1)*(1-p2)
	if pe == 1 {
		return math.NaN()
	}
	return (po - pe) / (1 - pe)
}
