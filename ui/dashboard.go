// Package ui is a terminal dashboard for a running simulation. It polls the
// host view and renders the current generation as a table.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pthm-cable/natsel/host"
)

const (
	refreshInterval = 250 * time.Millisecond
	removalLines    = 6
	minTableHeight  = 5
)

// Source provides the state to render.
type Source interface {
	State(now time.Time) host.State
}

// Killer removes a creature on request.
type Killer func(id string) error

// Option customizes a Dashboard.
type Option func(*Dashboard)

// WithKiller enables the kill key.
func WithKiller(k Killer) Option {
	return func(d *Dashboard) {
		d.killer = k
	}
}

// WithClock allows tests to control time.
func WithClock(clock func() time.Time) Option {
	return func(d *Dashboard) {
		if clock != nil {
			d.clock = clock
		}
	}
}

type refreshMsg time.Time

// Dashboard is the bubbletea model.
type Dashboard struct {
	source Source
	killer Killer
	clock  func() time.Time

	table  table.Model
	state  host.State
	status string
}

var columns = []table.Column{
	{Title: "ID", Width: 14},
	{Title: "Speed", Width: 6},
	{Title: "Size", Width: 6},
	{Title: "Sense", Width: 6},
	{Title: "Energy", Width: 7},
	{Title: "Foods", Width: 5},
	{Title: "Kills", Width: 5},
	{Title: "X", Width: 6},
	{Title: "Y", Width: 6},
}

// New creates a dashboard reading from source.
func New(source Source, opts ...Option) *Dashboard {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	d := &Dashboard{
		source: source,
		clock:  time.Now,
		table:  t,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Init starts the refresh loop.
func (d *Dashboard) Init() tea.Cmd {
	return d.refresh()
}

func (d *Dashboard) refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return d, tea.Quit
		case "x":
			d.killSelected()
			return d, nil
		}
	case tea.WindowSizeMsg:
		d.table.SetHeight(max(minTableHeight, msg.Height-removalLines-8))
	case refreshMsg:
		d.load()
		return d, d.refresh()
	}

	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)
	return d, cmd
}

func (d *Dashboard) load() {
	d.state = d.source.State(d.clock())
	rows := make([]table.Row, 0, len(d.state.Creatures))
	for _, c := range d.state.Creatures {
		rows = append(rows, table.Row{
			c.ID,
			fmt.Sprintf("%.2f", c.Speed),
			fmt.Sprintf("%.2f", c.Size),
			fmt.Sprintf("%.2f", c.Sense),
			fmt.Sprintf("%.2f", c.Energy),
			fmt.Sprintf("%d", c.FoodsEaten),
			fmt.Sprintf("%d", c.Kills),
			fmt.Sprintf("%.1f", c.X),
			fmt.Sprintf("%.1f", c.Y),
		})
	}
	d.table.SetRows(rows)
}

func (d *Dashboard) killSelected() {
	if d.killer == nil {
		return
	}
	row := d.table.SelectedRow()
	if len(row) == 0 {
		return
	}
	if err := d.killer(row[0]); err != nil {
		d.status = errStyle.Render(fmt.Sprintf("kill %s: %v", row[0], err))
		return
	}
	d.status = fmt.Sprintf("kill requested for %s", row[0])
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	s := d.state
	header := titleStyle.Render(fmt.Sprintf("Generation %d", s.Generation))
	stats := statStyle.Render(fmt.Sprintf("%d creatures · %d food left · world %.0fx%.0f",
		len(s.Creatures), len(s.Foods), s.World.Width, s.World.Height))

	sections := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, header, "  ", stats),
		boxStyle.Render(d.table.View()),
		boxStyle.Render(d.renderRemovals()),
	}
	if d.status != "" {
		sections = append(sections, d.status)
	}
	help := "↑/↓ select · q quit"
	if d.killer != nil {
		help = "↑/↓ select · x kill · q quit"
	}
	sections = append(sections, mutedStyle.Render(help))
	return strings.Join(sections, "\n")
}

func (d *Dashboard) renderRemovals() string {
	removals := d.state.Removals
	if len(removals) == 0 {
		return mutedStyle.Render("no recent removals")
	}
	if len(removals) > removalLines {
		removals = removals[len(removals)-removalLines:]
	}
	lines := make([]string, 0, len(removals))
	for i := len(removals) - 1; i >= 0; i-- {
		r := removals[i]
		line := fmt.Sprintf("%s %s", r.ID, r.Reason)
		if r.KilledBy != "" {
			line += " by " + r.KilledBy
		}
		lines = append(lines, reasonStyle(r.Reason).Render(line))
	}
	return strings.Join(lines, "\n")
}
