/*
Package eval loads YAML evaluation suites and scores them through the
dual-judge pipeline. This package contains all non-CLI logic for the
MindWing eval command.
*/
package eval

import (
	"time"

	"github.com/josephgoksu/MindWing/internal/memory"
)

// Suite defines the cases of one evaluation run.
type Suite struct {
	Version int    `yaml:"version"`
	Name    string `yaml:"name,omitempty"`
	Cases   []Case `yaml:"cases"`
}

// Case is one query judged against candidate documents. Documents are
// given inline, referenced by insight id, or both.
type Case struct {
	ID     string    `yaml:"id"`
	Query  string    `yaml:"query"`
	Docs   []CaseDoc `yaml:"docs,omitempty"`
	DocIDs []int64   `yaml:"doc_ids,omitempty"`
	Notes  string    `yaml:"notes,omitempty"` // expected judge behaviour, for the suite author
}

// CaseDoc is an inline candidate document. A doc without an id gets its
// 1-based position in the case.
type CaseDoc struct {
	ID      int64  `yaml:"id,omitempty"`
	Content string `yaml:"content"`
}

// Results holds the output of a suite run.
type Results struct {
	Suite       string               `json:"suite,omitempty"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Judge1Model string               `json:"judge1Model,omitempty"`
	Judge2Model string               `json:"judge2Model,omitempty"`
	Cases       []CaseResult         `json:"cases"`
	Costs       []memory.CostSummary `json:"costs,omitempty"`
	CostUSD     float64              `json:"costUsd"`
}

// CaseResult is the scored outcome of one case. Kappa is nil when the
// judges were unanimous and agreement is undefined.
type CaseResult struct {
	CaseID        string   `json:"case"`
	QueryID       string   `json:"queryId"`
	Docs          int      `json:"docs"`
	Kappa         *float64 `json:"kappa"`
	GroundTruthID int64    `json:"groundTruthId,omitempty"`
	Err           string   `json:"error,omitempty"`
}
