// Package tui renders a scenario session as it runs.
//
// The watch view is a bubbletea model. Each tick advances the session one
// frame and redraws per-segment occupancy from the scheduler snapshot,
// the state of every process instance and the tail of the trace.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/framesched/internal/harness"
	"github.com/roach88/framesched/internal/ir"
	"github.com/roach88/framesched/internal/scheduler"
)

const (
	// DefaultInterval is the wall time between frames.
	DefaultInterval = 250 * time.Millisecond

	minInterval = 25 * time.Millisecond
	maxInterval = 2 * time.Second
	tailLength  = 8
	barWidth    = 24
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	faultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	liveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))
	waitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D"))
)

// tickMsg asks the model to advance one frame. Ticks from a superseded
// frame clock carry an old gen and are dropped.
type tickMsg struct {
	gen int
}

// Option configures a Model.
type Option func(*Model)

// WithInterval sets the wall time between frames.
func WithInterval(d time.Duration) Option {
	return func(m *Model) {
		m.interval = clampInterval(d)
	}
}

// WithSink receives every batch of new trace events, for live journaling.
// A sink error stops the view.
func WithSink(fn func([]ir.Event) error) Option {
	return func(m *Model) {
		m.sink = fn
	}
}

// Model is the watch view. It owns the session's driving goroutine: the
// session is only stepped from Update.
type Model struct {
	session  *harness.Session
	interval time.Duration
	sink     func([]ir.Event) error
	paused   bool
	gen      int
	tail     []ir.Event
	events   int
	err      error
	width    int
}

// New returns a watch view over session. Events produced before the first
// frame are flushed to the sink immediately.
func New(session *harness.Session, opts ...Option) *Model {
	m := &Model{session: session, interval: DefaultInterval}
	for _, opt := range opts {
		opt(m)
	}
	m.drain()
	return m
}

// Err returns the error that stopped the view, if any.
func (m *Model) Err() error {
	return m.err
}

// Init starts the frame clock.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// tick schedules the next frame and retires any tick still in flight.
func (m *Model) tick() tea.Cmd {
	m.gen++
	gen := m.gen
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

// Update advances the session on ticks and handles keys:
// space pauses, n steps one frame while paused, + and - change speed,
// q quits.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		if msg.gen != m.gen || m.paused || m.session.Done() {
			return m, nil
		}
		if !m.StepFrame() {
			return m, tea.Quit
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
			if !m.paused {
				return m, m.tick()
			}
		case "n":
			if m.paused && !m.session.Done() && !m.StepFrame() {
				return m, tea.Quit
			}
		case "+", "=":
			m.interval = clampInterval(m.interval / 2)
		case "-":
			m.interval = clampInterval(m.interval * 2)
		}
	}
	return m, nil
}

// StepFrame advances the session one frame and hands new events to the
// sink. It returns false when the view must stop.
func (m *Model) StepFrame() bool {
	// faults are shown from the session
	_ = m.session.Step(context.Background())
	return m.drain()
}

func (m *Model) drain() bool {
	fresh := m.session.Flush()
	m.events += len(fresh)
	m.tail = append(m.tail, fresh...)
	if n := len(m.tail); n > tailLength {
		m.tail = slices.Clone(m.tail[n-tailLength:])
	}
	if m.sink != nil && len(fresh) > 0 {
		if err := m.sink(fresh); err != nil {
			m.err = err
			return false
		}
	}
	return true
}

// View renders the current frame.
func (m *Model) View() string {
	sc := m.session.Scenario()
	snap := m.session.Scheduler().Snapshot()

	status := liveStyle.Render("running")
	switch {
	case m.session.Done():
		status = mutedStyle.Render("finished")
	case m.paused:
		status = waitStyle.Render("paused")
	}
	header := titleStyle.Render(fmt.Sprintf("framesched · %s", sc.Name)) +
		mutedStyle.Render(fmt.Sprintf("  frame %d/%d  t=%.3fs  ", m.session.Frame(), sc.Frames, snap.LocalTime)) +
		status

	sections := []string{
		header,
		boxStyle.Render(renderSegments(snap)),
		boxStyle.Render(renderStates(m.session.States())),
		boxStyle.Render(renderTail(m.tail, m.events)),
	}
	if faults := m.session.Faults(); len(faults) > 0 {
		sections = append(sections, faultStyle.Render(fmt.Sprintf("%d fault(s), last: %s", len(faults), faults[len(faults)-1])))
	}
	if m.err != nil {
		sections = append(sections, faultStyle.Render("journal: "+m.err.Error()))
	}
	sections = append(sections, mutedStyle.Render(fmt.Sprintf("space pause · n step · +/- speed (%s) · q quit", m.interval)))
	return strings.Join(sections, "\n")
}

func renderSegments(snap scheduler.Snapshot) string {
	lines := []string{titleStyle.Render("SEGMENTS")}
	for _, ss := range snap.Segments {
		lines = append(lines, fmt.Sprintf("%-12s %s %3d live  %2d paused  %2d blocked  %d/%d slots",
			ss.Segment, bar(ss.Live, ss.Capacity), ss.Live, ss.Paused, ss.Blocked, ss.Used, ss.Capacity))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("handles %d  waits %d  pending faults %d", snap.Handles, snap.Waits, snap.Faults)))
	return strings.Join(lines, "\n")
}

// bar draws live/capacity as a fixed-width gauge.
func bar(live, capacity int) string {
	filled := 0
	if capacity > 0 {
		filled = min(barWidth, (live*barWidth+capacity-1)/capacity)
	}
	return liveStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", barWidth-filled))
}

func renderStates(states map[string]string) string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	slices.Sort(names)

	lines := []string{titleStyle.Render("PROCESSES")}
	for _, name := range names {
		state := states[name]
		style := mutedStyle
		switch state {
		case harness.StateRunning:
			style = liveStyle
		case harness.StateBlocked, harness.StatePaused:
			style = waitStyle
		}
		lines = append(lines, fmt.Sprintf("%-20s %s", name, style.Render(state)))
	}
	return strings.Join(lines, "\n")
}

func renderTail(tail []ir.Event, total int) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("TRACE · %d events", total))}
	if len(tail) == 0 {
		lines = append(lines, mutedStyle.Render("(no events)"))
	}
	for _, e := range tail {
		line := fmt.Sprintf("%4d  f%-4d %-12s %-10s %s", e.Seq, e.Frame, e.Segment, e.Kind, e.Process)
		if msg, ok := e.Detail["message"].(ir.String); ok {
			line += "  " + string(msg)
		}
		if e.Kind == string(scheduler.EventFaulted) {
			line = faultStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func clampInterval(d time.Duration) time.Duration {
	return min(max(d, minInterval), maxInterval)
}
