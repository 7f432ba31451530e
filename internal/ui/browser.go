package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/MindWing/internal/memory"
)

// Browser tier order matches the tab bar left to right.
const (
	tierWorking = iota
	tierInsights
	tierEpisodes
	tierStale
	tierRaw
	tierCount
)

var tierNames = [tierCount]string{"Working", "Insights", "Episodes", "Stale", "Raw"}

// TierData holds everything the browser shows. Raw dialogue is scoped to
// one session because the log is append-only and unbounded.
type TierData struct {
	Working  []memory.WorkingItem
	Insights []memory.Insight
	Episodes []memory.Episode
	Stale    []memory.StaleItem
	Raw      []memory.RawEntry
	Session  string
}

// LoadTierData reads every browsable tier. session may be empty; the raw
// tab then shows a hint instead of rows.
func LoadTierData(ctx context.Context, store *memory.Store, session string, limit int) (*TierData, error) {
	if limit <= 0 {
		limit = 200
	}

	data := &TierData{Session: session}
	var err error
	if data.Working, err = store.ListWorking(ctx); err != nil {
		return nil, fmt.Errorf("load working tier: %w", err)
	}
	if data.Insights, err = store.ListRecentInsights(ctx, limit); err != nil {
		return nil, fmt.Errorf("load insight tier: %w", err)
	}
	if data.Episodes, err = store.ListEpisodes(ctx, limit); err != nil {
		return nil, fmt.Errorf("load episode tier: %w", err)
	}
	if data.Stale, err = store.ListStale(ctx, 0, limit); err != nil {
		return nil, fmt.Errorf("load stale tier: %w", err)
	}
	if session != "" {
		if data.Raw, err = store.ListRawBySession(ctx, session, time.Time{}, time.Time{}, limit); err != nil {
			return nil, fmt.Errorf("load raw tier: %w", err)
		}
	}
	return data, nil
}

// BrowserModel is the Bubble Tea model behind `mindwing inspect`: a tab per
// tier, each backed by a scrollable table.
type BrowserModel struct {
	data   *TierData
	tables [tierCount]table.Model
	tier   int
	width  int
	height int
}

// NewBrowser builds the model with every tier table populated up front;
// the browser is a read-only view over one load.
func NewBrowser(data *TierData) BrowserModel {
	m := BrowserModel{data: data}

	m.tables[tierWorking] = newTierTable(
		[]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Imp", Width: 5},
			{Title: "Last accessed", Width: 13},
			{Title: "Content", Width: 60},
		}, workingTierRows(data.Working))

	m.tables[tierInsights] = newTierTable(
		[]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Created", Width: 13},
			{Title: "Src", Width: 4},
			{Title: "Content", Width: 61},
		}, insightTierRows(data.Insights))

	m.tables[tierEpisodes] = newTierTable(
		[]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Reward", Width: 6},
			{Title: "Query", Width: 32},
			{Title: "Reflection", Width: 40},
		}, episodeTierRows(data.Episodes))

	m.tables[tierStale] = newTierTable(
		[]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Imp", Width: 5},
			{Title: "Reason", Width: 14},
			{Title: "Archived", Width: 13},
			{Title: "Content", Width: 44},
		}, staleTierRows(data.Stale))

	m.tables[tierRaw] = newTierTable(
		[]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Speaker", Width: 8},
			{Title: "Time", Width: 13},
			{Title: "Content", Width: 57},
		}, rawTierRows(data.Raw))

	m.tables[m.tier].Focus()
	return m
}

func newTierTable(cols []table.Column, rows []table.Row) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(14),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		Bold(true).
		Foreground(ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorSecondary).
		BorderBottom(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(ColorPrimary)
	t.SetStyles(s)
	return t
}

func workingTierRows(items []memory.WorkingItem) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			strconv.FormatInt(it.ID, 10),
			fmt.Sprintf("%.2f", it.Importance),
			it.LastAccessed.Format("Jan 02 15:04"),
			it.Content,
		})
	}
	return rows
}

func insightTierRows(items []memory.Insight) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			strconv.FormatInt(it.ID, 10),
			it.CreatedAt.Format("Jan 02 15:04"),
			strconv.Itoa(len(it.SourceIDs)),
			it.Content,
		})
	}
	return rows
}

func episodeTierRows(items []memory.Episode) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			strconv.FormatInt(it.ID, 10),
			fmt.Sprintf("%+.2f", it.Reward),
			it.Query,
			it.Reflection,
		})
	}
	return rows
}

func staleTierRows(items []memory.StaleItem) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			strconv.FormatInt(it.ID, 10),
			fmt.Sprintf("%.2f", it.Importance),
			it.Reason,
			it.ArchivedAt.Format("Jan 02 15:04"),
			it.OriginalContent,
		})
	}
	return rows
}

func rawTierRows(items []memory.RawEntry) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			strconv.FormatInt(it.ID, 10),
			it.Speaker,
			it.Timestamp.Format("Jan 02 15:04"),
			it.Content,
		})
	}
	return rows
}

func (m BrowserModel) Init() tea.Cmd {
	return nil
}

func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "right", "l", "tab":
			m.selectTier((m.tier + 1) % tierCount)
			return m, nil
		case "left", "h", "shift+tab":
			m.selectTier((m.tier + tierCount - 1) % tierCount)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.tables {
			m.tables[i].SetWidth(msg.Width - 2)
			m.tables[i].SetHeight(msg.Height - 7)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.tables[m.tier], cmd = m.tables[m.tier].Update(msg)
	return m, cmd
}

func (m *BrowserModel) selectTier(i int) {
	m.tables[m.tier].Blur()
	m.tier = i
	m.tables[m.tier].Focus()
}

func (m BrowserModel) tierSize(i int) int {
	switch i {
	case tierWorking:
		return len(m.data.Working)
	case tierInsights:
		return len(m.data.Insights)
	case tierEpisodes:
		return len(m.data.Episodes)
	case tierStale:
		return len(m.data.Stale)
	default:
		return len(m.data.Raw)
	}
}

func (m BrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleHeader.Render("🧠 MindWing Memory"))
	b.WriteString("\n\n ")

	tabs := make([]string, tierCount)
	for i, name := range tierNames {
		label := fmt.Sprintf("%s (%d)", name, m.tierSize(i))
		if i == m.tier {
			tabs[i] = StyleTabActive.Render(label)
		} else {
			tabs[i] = StyleTabInactive.Render(label)
		}
	}
	b.WriteString(strings.Join(tabs, StyleSubtle.Render(" │ ")))
	b.WriteString("\n\n")

	switch {
	case m.tier == tierRaw && m.data.Session == "":
		b.WriteString(StyleSubtle.Render(" Pass --session to browse raw dialogue."))
	case m.tierSize(m.tier) == 0:
		b.WriteString(StyleSubtle.Render(" Nothing stored in this tier yet."))
	default:
		b.WriteString(m.tables[m.tier].View())
	}

	b.WriteString("\n\n")
	b.WriteString(StyleSubtle.Render(" ←/→ switch tier · ↑/↓ scroll · q quit"))
	return b.String()
}

// RunBrowser opens the full-screen browser and blocks until the user
// quits. Callers must ensure stdout is a terminal first.
func RunBrowser(data *TierData) error {
	p := tea.NewProgram(NewBrowser(data), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("memory browser: %w", err)
	}
	return nil
}
