// Package model holds the bubbletea models backing the CLI views.
package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avolkhov/sessionkit/internal/cache"
	"github.com/avolkhov/sessionkit/internal/cli/styles"
	"github.com/avolkhov/sessionkit/internal/telemetry"
)

// StatsSnapshot is a point-in-time view of the coordination layer,
// captured by the caller before the TUI starts.
type StatsSnapshot struct {
	Batcher       telemetry.Status
	CacheStats    map[string]cache.Stats
	TotalsEntries int
	DedupPending  int
	DebouncePend  int
	Spill         *telemetry.Spill
}

// StatsModel renders a snapshot as a static dashboard. It does not
// poll; rerun the command for fresh numbers.
type StatsModel struct {
	snap  StatsSnapshot
	table table.Model
	theme styles.Theme
}

// NewStats builds the stats dashboard from a captured snapshot.
func NewStats(snap StatsSnapshot) StatsModel {
	theme := styles.Default()

	columns := []table.Column{
		{Title: "Namespace", Width: 20},
		{Title: "Size", Width: 6},
		{Title: "Hits", Width: 8},
		{Title: "Misses", Width: 8},
		{Title: "Evictions", Width: 10},
	}

	names := make([]string, 0, len(snap.CacheStats))
	for name := range snap.CacheStats {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]table.Row, 0, len(names))
	for _, name := range names {
		st := snap.CacheStats[name]
		rows = append(rows, table.Row{
			name,
			fmt.Sprintf("%d", st.Size),
			fmt.Sprintf("%d", st.Hits),
			fmt.Sprintf("%d", st.Misses),
			fmt.Sprintf("%d", st.Evictions),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(min(len(rows)+1, 12)),
		table.WithFocused(true),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Bold(true).Foreground(lipgloss.Color("205"))
	ts.Selected = ts.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(ts)

	return StatsModel{snap: snap, table: t, theme: theme}
}

func (m StatsModel) Init() tea.Cmd { return nil }

func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m StatsModel) View() string {
	th := m.theme

	batcher := fmt.Sprintf("%s %s  %s %d  %s %d",
		th.Label.Render("state:"), th.Value.Render(m.snap.Batcher.State.String()),
		th.Label.Render("buffered:"), m.snap.Batcher.BufferLen,
		th.Label.Render("attempts:"), m.snap.Batcher.Attempts,
	)

	spill := th.Good.Render("none")
	if m.snap.Spill != nil {
		age := time.Since(m.snap.Spill.Timestamp).Round(time.Second)
		spill = th.Bad.Render(fmt.Sprintf("%d events, captured %s ago", len(m.snap.Spill.Events), age))
	}

	counters := fmt.Sprintf("%s %d  %s %d  %s %d",
		th.Label.Render("totals entries:"), m.snap.TotalsEntries,
		th.Label.Render("dedup pending:"), m.snap.DedupPending,
		th.Label.Render("debounce pending:"), m.snap.DebouncePend,
	)

	body := lipgloss.JoinVertical(lipgloss.Left,
		th.Title.Render("sessionkit status"),
		th.Border.Render(lipgloss.JoinVertical(lipgloss.Left,
			th.Label.Render("batcher"),
			batcher,
			th.Label.Render("spill"),
			spill,
			counters,
		)),
		m.table.View(),
		th.Help.Render("q/esc to quit"),
	)
	return body
}
