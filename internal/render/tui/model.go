package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dooshek/nicoverlay/internal/overlay"
	"github.com/mattn/go-runewidth"
)

const frameInterval = time.Second / 30

const meterWidth = 8

// bold kicks in for the upper part of the font size range
const boldFontSize = 24

type addMsg struct {
	el   overlay.Element
	done func(id string)
}

type removeMsg struct {
	id string
}

type frameMsg time.Time

type comment struct {
	el       overlay.Element
	started  time.Time
	done     func(id string)
	finished bool
}

type cellStyle uint8

const (
	styleNone cellStyle = iota
	styleRegular
	styleBold
	styleBurst
)

var (
	regularStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	boldStyle    = regularStyle.Bold(true)
	burstStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type model struct {
	r        *Renderer
	comments map[string]*comment
	width    int
	height   int
	now      time.Time
	clock    func() time.Time
	quitting bool
}

func newModel(r *Renderer) model {
	return model{
		r:        r,
		comments: make(map[string]*comment),
		clock:    time.Now,
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return frameTick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "b":
			if m.r != nil && m.r.onBurst != nil {
				m.r.onBurst()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.r != nil {
			m.r.setGeometry(m.canvas())
		}
		return m, nil

	case addMsg:
		m.comments[msg.el.ID] = &comment{el: msg.el, started: m.clock(), done: msg.done}
		return m, nil

	case removeMsg:
		delete(m.comments, msg.id)
		return m, nil

	case frameMsg:
		finished := m.advance(time.Time(msg))
		cmds := make([]tea.Cmd, 0, len(finished)+1)
		for _, c := range finished {
			cmds = append(cmds, reportDone(c))
		}
		cmds = append(cmds, frameTick())
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// reportDone runs the completion callback off the program goroutine, since
// the scheduler may itself be waiting to send us a message.
func reportDone(c *comment) tea.Cmd {
	return func() tea.Msg {
		if c.done != nil {
			c.done(c.el.ID)
		}
		return nil
	}
}

// canvas is the drawing area: everything but the status line
func (m model) canvas() overlay.Geometry {
	h := m.height - 1
	if h < 0 {
		h = 0
	}
	return overlay.Geometry{Width: m.width, Height: h, Cells: true}
}

// advance moves the clock to now and returns the comments that reached the
// left edge since the last frame. Finished comments stay drawn off-screen
// until the scheduler removes them.
func (m *model) advance(now time.Time) []*comment {
	m.now = now
	var finished []*comment
	for _, c := range m.comments {
		if c.finished {
			continue
		}
		if _, done := c.el.Position(now.Sub(c.started)); done {
			c.finished = true
			finished = append(finished, c)
		}
	}
	return finished
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	geo := m.canvas()
	if geo.Width <= 0 || geo.Height <= 0 {
		return ""
	}

	grid := newGrid(geo.Width, geo.Height)

	// deterministic overlap: later spawns are drawn on top
	ordered := make([]*comment, 0, len(m.comments))
	for _, c := range m.comments {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].started.Before(ordered[j].started)
	})

	for _, c := range ordered {
		x, _ := c.el.Position(m.now.Sub(c.started))
		grid.put(x, c.el.Y, c.el.Text, styleFor(c.el))
	}

	var b strings.Builder
	for row := 0; row < geo.Height; row++ {
		b.WriteString(grid.renderRow(row))
		b.WriteByte('\n')
	}
	b.WriteString(m.status())
	return b.String()
}

func (m model) status() string {
	parts := []string{fmt.Sprintf("💬 %d", len(m.comments))}
	if m.r != nil && m.r.counters != nil {
		s := m.r.counters.GetStats()
		parts = append(parts, fmt.Sprintf("spikes %d", s.Spikes), fmt.Sprintf("dropped %d", s.Dropped))
	}
	if m.r != nil && m.r.levels != nil {
		vol, avg := m.r.levels()
		parts = append(parts, fmt.Sprintf("vol %.3f avg %.3f", vol, avg))
	}
	if m.r != nil && m.r.meter != nil {
		parts = append(parts, meterBar(m.r.meter(), meterWidth))
	}
	parts = append(parts, "b burst", "q quit")
	return statusStyle.Render(runewidth.Truncate(strings.Join(parts, " · "), m.width, ""))
}

func meterBar(level float64, width int) string {
	filled := int(level*float64(width) + 0.5)
	filled = max(0, min(filled, width))
	return strings.Repeat("▮", filled) + strings.Repeat("▯", width-filled)
}

func styleFor(el overlay.Element) cellStyle {
	switch {
	case el.Burst:
		return styleBurst
	case el.FontSize >= boldFontSize:
		return styleBold
	default:
		return styleRegular
	}
}

type cell struct {
	ch    string // empty for the right half of a wide rune
	style cellStyle
}

type grid struct {
	width int
	rows  [][]cell
}

func newGrid(width, height int) *grid {
	rows := make([][]cell, height)
	for i := range rows {
		rows[i] = make([]cell, width)
		for j := range rows[i] {
			rows[i][j] = cell{ch: " "}
		}
	}
	return &grid{width: width, rows: rows}
}

// put writes text starting at column x, clipping at both edges. Wide runes
// that would straddle an edge are dropped.
func (g *grid) put(x, y int, text string, style cellStyle) {
	if y < 0 || y >= len(g.rows) {
		return
	}
	row := g.rows[y]
	col := x
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col >= g.width {
			return
		}
		if col >= 0 && col+w <= g.width {
			// never leave half of an overwritten wide rune behind
			if row[col].ch == "" && col > 0 {
				row[col-1] = cell{ch: " "}
			}
			row[col] = cell{ch: string(r), style: style}
			for k := 1; k < w; k++ {
				row[col+k] = cell{style: style}
			}
			if next := col + w; next < g.width && row[next].ch == "" {
				row[next] = cell{ch: " "}
			}
		}
		col += w
	}
}

func (g *grid) renderRow(y int) string {
	var b strings.Builder
	row := g.rows[y]
	for i := 0; i < len(row); {
		style := row[i].style
		var run strings.Builder
		for i < len(row) && row[i].style == style {
			run.WriteString(row[i].ch)
			i++
		}
		b.WriteString(renderRun(run.String(), style))
	}
	return b.String()
}

func renderRun(s string, style cellStyle) string {
	switch style {
	case styleRegular:
		return regularStyle.Render(s)
	case styleBold:
		return boldStyle.Render(s)
	case styleBurst:
		return burstStyle.Render(s)
	default:
		return s
	}
}
