// Package tui is the terminal count-along view used by `countsheet rehearse`.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/tempo"
)

const tickInterval = 50 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	countStyle = lipgloss.NewStyle().
			Width(6).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("#666666"))

	activeCountStyle = countStyle.
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(lipgloss.Color("#FF5F87")).
				Bold(true)

	accentCountStyle = countStyle.Foreground(lipgloss.Color("#FFD700"))

	moveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
)

type keyMap struct {
	Play    key.Binding
	Back    key.Binding
	Forward key.Binding
	Restart key.Binding
	Tap     key.Binding
	Clear   key.Binding
	Apply   key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Back, k.Forward, k.Restart, k.Tap, k.Apply, k.Clear, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Back, k.Forward, k.Restart},
		{k.Tap, k.Apply, k.Clear, k.Quit},
	}
}

var keys = keyMap{
	Play:    key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
	Back:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "measure back")),
	Forward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "measure forward")),
	Restart: key.NewBinding(key.WithKeys("home", "0"), key.WithHelp("0", "restart")),
	Tap:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tap tempo")),
	Clear:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "clear taps")),
	Apply:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply tapped BPM")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

// ApplyFunc rebuilds the grid at a new BPM and returns the merged notes.
type ApplyFunc func(bpm float64) ([]grid.Note, error)

// Options configures a count-along model.
type Options struct {
	Name        string
	DurationSec float64
	BPM         float64
	OffsetSec   float64
	Notes       []grid.Note
	Apply       ApplyFunc
}

type tickMsg time.Time

type appliedMsg struct {
	bpm   float64
	notes []grid.Note
	err   error
}

// Model plays a wall-clock playhead over the count grid and highlights the
// nearest count. Tapping `t` measures a tempo that enter applies.
type Model struct {
	name     string
	duration float64
	bpm      float64
	offset   float64
	notes    []grid.Note
	cells    []grid.Cell
	apply    ApplyFunc
	position float64
	playing  bool
	lastTick time.Time
	taps     *tempo.TapTempo
	tapBPM   int
	applying bool
	message  string
	quitting bool
	help     help.Model
	now      func() time.Time
}

// New creates a model positioned at the start of the track.
func New(opts Options) Model {
	m := Model{
		name:     opts.Name,
		duration: opts.DurationSec,
		bpm:      opts.BPM,
		offset:   opts.OffsetSec,
		apply:    opts.Apply,
		taps:     &tempo.TapTempo{},
		help:     help.New(),
		now:      time.Now,
	}
	m.setNotes(opts.Notes)
	return m
}

func (m *Model) setNotes(notes []grid.Note) {
	m.notes = notes
	m.cells = make([]grid.Cell, len(notes))
	for i, n := range notes {
		m.cells[i] = n.Cell
	}
}

// Position is the playhead in seconds.
func (m Model) Position() float64 { return m.position }

// Playing reports whether the playhead is moving.
func (m Model) Playing() bool { return m.playing }

// BPM is the tempo the grid is currently built at.
func (m Model) BPM() float64 { return m.bpm }

// Index is the grid index nearest the playhead, or -1 for an empty grid.
func (m Model) Index() int {
	return grid.NearestCountAt(m.position, m.cells)
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if !m.playing {
			return m, nil
		}
		t := time.Time(msg)
		if !m.lastTick.IsZero() && t.After(m.lastTick) {
			m.position += t.Sub(m.lastTick).Seconds()
		}
		m.lastTick = t
		if m.position >= m.duration {
			m.position = m.duration
			m.playing = false
			m.message = "End of track"
			return m, nil
		}
		return m, tick()

	case appliedMsg:
		m.applying = false
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.bpm = msg.bpm
		m.setNotes(msg.notes)
		m.taps.Reset()
		m.tapBPM = 0
		m.message = fmt.Sprintf("Grid rebuilt at %.0f BPM", msg.bpm)
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Play):
		m.playing = !m.playing
		if m.playing {
			if m.position >= m.duration {
				m.position = 0
			}
			m.lastTick = m.now()
			m.message = ""
			return m, tick()
		}

	case key.Matches(msg, keys.Back):
		m.seek(-m.measureSec())
	case key.Matches(msg, keys.Forward):
		m.seek(m.measureSec())
	case key.Matches(msg, keys.Restart):
		m.position = 0
		m.lastTick = m.now()

	case key.Matches(msg, keys.Tap):
		if bpm, ok := m.taps.Tap(m.now()); ok {
			m.tapBPM = bpm
			m.message = fmt.Sprintf("Tapped %d BPM, enter to apply", bpm)
		} else {
			m.message = "Keep tapping..."
		}
	case key.Matches(msg, keys.Clear):
		m.taps.Reset()
		m.tapBPM = 0
		m.message = "Taps cleared"

	case key.Matches(msg, keys.Apply):
		if m.tapBPM == 0 || m.applying {
			return m, nil
		}
		bpm := tempo.Clamp(float64(m.tapBPM))
		if m.apply == nil {
			m.message = "Read-only: tempo not saved"
			return m, nil
		}
		m.applying = true
		m.message = fmt.Sprintf("Rebuilding at %.0f BPM...", bpm)
		apply := m.apply
		return m, func() tea.Msg {
			notes, err := apply(bpm)
			return appliedMsg{bpm: bpm, notes: notes, err: err}
		}
	}
	return m, nil
}

func (m *Model) measureSec() float64 {
	if m.bpm <= 0 {
		return 0
	}
	return 60 / m.bpm * grid.CountsPerMeasure
}

func (m *Model) seek(delta float64) {
	m.position += delta
	if m.position < 0 {
		m.position = 0
	}
	if m.position > m.duration {
		m.position = m.duration
	}
	m.lastTick = m.now()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("countsheet · "+m.name) + "\n\n")

	state := "paused"
	if m.playing {
		state = "playing"
	}
	fmt.Fprintf(&b, "%s / %s  %.0f BPM  offset %+.2fs  %s\n\n",
		grid.FormatTime(m.position), grid.FormatDuration(m.duration), m.bpm, m.offset, dimStyle.Render(state))

	idx := m.Index()
	if idx < 0 {
		b.WriteString(dimStyle.Render("No counts on this grid.") + "\n")
	} else {
		b.WriteString(m.viewMeasure(idx))
	}

	b.WriteString("\n")
	if m.tapBPM > 0 {
		fmt.Fprintf(&b, "Tap tempo: %d BPM (%d taps)\n", m.tapBPM, m.taps.Count())
	}
	if m.message != "" {
		if strings.HasPrefix(m.message, "Error") {
			b.WriteString(errorStyle.Render(m.message) + "\n")
		} else {
			b.WriteString(m.message + "\n")
		}
	}

	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}

func (m Model) viewMeasure(idx int) string {
	cur := m.notes[idx]
	var b strings.Builder

	fmt.Fprintf(&b, "Measure %d\n", cur.MeasureIndex+1)
	row := make([]string, 0, grid.CountsPerMeasure)
	for i, n := range m.notes {
		if n.MeasureIndex != cur.MeasureIndex {
			continue
		}
		label := fmt.Sprintf("%d", n.CountInMeasure)
		switch {
		case i == idx:
			row = append(row, activeCountStyle.Render(label))
		case n.CountInMeasure == 1:
			row = append(row, accentCountStyle.Render(label))
		default:
			row = append(row, countStyle.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...) + "\n\n")

	text := cur.Text
	if text == "" {
		text = "·"
	}
	b.WriteString(moveStyle.Render(text) + "\n")

	if idx+1 < len(m.notes) {
		next := m.notes[idx+1]
		if next.Text != "" {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  next %d-%d: %s", next.MeasureIndex+1, next.CountInMeasure, next.Text)) + "\n")
		}
	}
	return b.String()
}
