package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// EvalCaseRow is one evaluated case. Kappa is nil when Cohen's kappa is
// undefined for the pair (unanimous judges leave no chance agreement to
// correct for).
type EvalCaseRow struct {
	ID    string
	Docs  int
	Kappa *float64
	Err   string
}

// EvalCostRow is one aggregated line of the run's provider spend.
type EvalCostRow struct {
	Provider  string
	Operation string
	Calls     int
	Tokens    int64
	CostUSD   float64
}

// EvalReport carries everything the eval command prints. The command maps
// runner results into this shape so the renderer stays free of the eval
// package's types.
type EvalReport struct {
	Suite       string
	Judge1Model string
	Judge2Model string
	Cases       []EvalCaseRow
	Costs       []EvalCostRow
	TotalUSD    float64
}

var (
	reportSectionStyle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				MarginTop(1)

	agreementBarFull = lipgloss.NewStyle().
				Foreground(ColorSuccess)

	agreementBarEmpty = lipgloss.NewStyle().
				Foreground(lipgloss.Color("237"))
)

// RenderEvalReport renders a styled dual-judge evaluation report to stdout.
func RenderEvalReport(r EvalReport) {
	fmt.Println()
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		Padding(0, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSecondary).
		Render(fmt.Sprintf("EVAL RESULTS · %s", r.Suite))
	fmt.Println(header)
	fmt.Println()
	fmt.Printf("  Judges: %s vs %s\n", StyleTitle.Render(r.Judge1Model), StyleTitle.Render(r.Judge2Model))

	renderCaseAgreement(r.Cases)
	renderCaseFailures(r.Cases)
	renderRunCosts(r.Costs, r.TotalUSD)

	fmt.Println()
}

func renderCaseAgreement(cases []EvalCaseRow) {
	fmt.Println(reportSectionStyle.Render("Case Agreement"))
	fmt.Println()

	maxLen := 0
	for _, c := range cases {
		if len(c.ID) > maxLen {
			maxLen = len(c.ID)
		}
	}

	var sum float64
	var defined int
	for _, c := range cases {
		name := fmt.Sprintf("%-*s", maxLen, c.ID)
		switch {
		case c.Err != "":
			fmt.Printf("  %s  %s\n", StyleTitle.Render(name), StyleError.Render("✗ failed"))
		case c.Kappa == nil:
			fmt.Printf("  %s  %s  %s\n", StyleTitle.Render(name), agreementBar(1),
				StyleSubtle.Render("κ undefined (unanimous judges)"))
		default:
			k := *c.Kappa
			sum += k
			defined++
			label := fmt.Sprintf("κ %+.3f · %s · %d docs", k, KappaLabel(k), c.Docs)
			fmt.Printf("  %s  %s  %s\n", StyleTitle.Render(name), agreementBar(k),
				KappaStyle(k).Render(label))
		}
	}

	if defined > 0 {
		mean := sum / float64(defined)
		fmt.Println()
		fmt.Printf("  Mean κ %s over %d scored cases\n",
			KappaStyle(mean).Render(fmt.Sprintf("%+.3f", mean)), defined)
	}
}

// agreementBar draws kappa's [-1,1] range as a ten-cell bar.
func agreementBar(kappa float64) string {
	const cells = 10
	filled := int((kappa + 1) / 2 * cells)
	if filled < 0 {
		filled = 0
	}
	if filled > cells {
		filled = cells
	}
	return agreementBarFull.Render(strings.Repeat("█", filled)) +
		agreementBarEmpty.Render(strings.Repeat("░", cells-filled))
}

func renderCaseFailures(cases []EvalCaseRow) {
	var failures []EvalCaseRow
	for _, c := range cases {
		if c.Err != "" {
			failures = append(failures, c)
		}
	}
	if len(failures) == 0 {
		return
	}

	fmt.Println(reportSectionStyle.Render("Failure Details"))
	fmt.Println()
	for _, f := range failures {
		fmt.Printf("  %s %s\n", StyleError.Render(f.ID), StyleSubtle.Render(f.Err))
	}
}

func renderRunCosts(costs []EvalCostRow, totalUSD float64) {
	if len(costs) == 0 {
		return
	}

	fmt.Println(reportSectionStyle.Render("Run Cost"))
	fmt.Println()

	table := &Table{
		Headers:    []string{"Provider", "Operation", "Calls", "Tokens", "Cost"},
		AlignRight: []int{2, 3, 4},
	}
	for _, c := range costs {
		table.Rows = append(table.Rows, []string{
			c.Provider,
			c.Operation,
			strconv.Itoa(c.Calls),
			strconv.FormatInt(c.Tokens, 10),
			fmt.Sprintf("$%.4f", c.CostUSD),
		})
	}
	fmt.Print(table.Render())
	fmt.Println()
	fmt.Printf("  Total %s\n", StyleTitle.Render(fmt.Sprintf("$%.4f", totalUSD)))
}
