package run

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/autoseed-cli/internal/engine"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

// Controls is what the live view can do to a running campaign.
type Controls interface {
	TogglePause() error
	Skip() bool
	Cancel() error
}

type snapshotMsg engine.Snapshot

type feedClosedMsg struct{}

// Feed turns engine events into a latest-wins snapshot stream for the live
// view. Intermediate snapshots may be dropped; the last one never is.
type Feed struct {
	mu sync.Mutex
	ch chan engine.Snapshot
}

func NewFeed() *Feed {
	return &Feed{ch: make(chan engine.Snapshot, 1)}
}

func (f *Feed) Observe(ev engine.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.ch:
	default:
	}
	f.ch <- ev.Snapshot
}

func (f *Feed) Updates() <-chan engine.Snapshot {
	return f.ch
}

type LiveModel struct {
	controls   Controls
	updates    <-chan engine.Snapshot
	spinner    spinner.Model
	opts       RenderOptions
	styles     styles
	snapshot   engine.Snapshot
	notice     string
	cancelling bool
	done       bool
}

func NewLiveModel(controls Controls, updates <-chan engine.Snapshot, initial engine.Snapshot, opts RenderOptions) LiveModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return LiveModel{
		controls: controls,
		updates:  updates,
		spinner:  s,
		opts:     opts,
		styles:   newStyles(),
		snapshot: initial,
	}
}

func waitForSnapshot(updates <-chan engine.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return feedClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForSnapshot(m.updates))
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snapshot = engine.Snapshot(msg)
		if m.snapshot.Status.Terminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForSnapshot(m.updates)
	case feedClosedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg), nil
	default:
		return m, nil
	}
}

func (m LiveModel) handleKey(msg tea.KeyMsg) LiveModel {
	switch msg.String() {
	case "p", " ":
		if err := m.controls.TogglePause(); err != nil {
			m.notice = err.Error()
		} else {
			m.notice = ""
		}
	case "s":
		if m.controls.Skip() {
			m.notice = "skip requested"
		} else {
			m.notice = "nothing to skip"
		}
	case "q", "ctrl+c", "esc":
		if m.cancelling {
			return m
		}
		m.cancelling = true
		m.notice = "cancelling..."
		if err := m.controls.Cancel(); err != nil {
			m.notice = err.Error()
		}
	}
	return m
}

func (m LiveModel) View() string {
	body := renderView(m.snapshot, m.opts, m.styles)
	if m.done {
		return body + "\n"
	}

	header := fmt.Sprintf("%s %s", m.spinner.View(), m.snapshot.Status)
	help := m.styles.hint.Render("p pause/resume  s skip  q cancel")
	parts := []string{header, body, help}
	if m.notice != "" {
		parts = append(parts, m.styles.warning.Render(m.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

// Final returns the last snapshot the view received.
func (m LiveModel) Final() engine.Snapshot {
	return m.snapshot
}

// Render returns a static summary of snap: the live view as it looks once the
// run is over, produced by a headless program.
func Render(snap engine.Snapshot, opts RenderOptions) (string, error) {
	closed := make(chan engine.Snapshot)
	close(closed)

	p := tea.NewProgram(
		NewLiveModel(nil, closed, snap, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(LiveModel)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}
	return rendered.View(), nil
}
