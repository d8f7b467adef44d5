package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tunebook/tunebook/internal/catalog"
)

// maxShownWarnings bounds the warning lines kept on screen.
const maxShownWarnings = 3

// TUIRenderer shows a live spinner panel using bubbletea. The final frame
// stays on screen as the run summary.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. Fails when output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	return &TUIRenderer{
		cfg:   cfg,
		model: newIngestModel(cfg),
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	opts = append(opts, tea.WithContext(ctx))

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.send(progressMsg(event))
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.send(errorMsg(event))
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(msg)
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()

	if program == nil {
		return nil
	}

	program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// Don't hang the command on an unresponsive terminal
	}
	return nil
}

type progressMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats

// ingestModel is the bubbletea model for an ingest run.
type ingestModel struct {
	title       string
	styles      Styles
	spinner     spinner.Model
	width       int
	started     time.Time
	stage       Stage
	message     string
	warnings    []ErrorEvent
	warnCount   int
	errCount    int
	complete    bool
	stats       CompletionStats
	quitting    bool
	onInterrupt func()
}

func newIngestModel(cfg Config) *ingestModel {
	styles := GetStyles(cfg.NoColor)

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = styles.Active

	return &ingestModel{
		title:       cfg.Title,
		styles:      styles,
		spinner:     s,
		width:       80,
		started:     time.Now(),
		onInterrupt: cfg.OnInterrupt,
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case progressMsg:
		m.stage = msg.Stage
		m.message = msg.Message

	case errorMsg:
		if msg.IsWarn {
			m.warnCount++
		} else {
			m.errCount++
		}
		m.warnings = append(m.warnings, ErrorEvent(msg))
		if len(m.warnings) > maxShownWarnings {
			m.warnings = m.warnings[len(m.warnings)-maxShownWarnings:]
		}

	case completeMsg:
		m.complete = true
		m.stage = StageComplete
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	lines := []string{
		m.renderStages(),
		"",
		fmt.Sprintf("%s %s", m.spinner.View(), m.message),
		m.styles.Dim.Render("elapsed " + formatDuration(time.Since(m.started))),
	}
	lines = append(lines, m.renderWarnings()...)

	return m.styles.Header.Render(m.title) + "\n" +
		m.styles.Panel.Width(m.panelWidth()).Render(strings.Join(lines, "\n")) + "\n"
}

func (m *ingestModel) panelWidth() int {
	if w := m.width - 4; w > 40 {
		return w
	}
	return 40
}

func (m *ingestModel) renderStages() string {
	var parts []string
	for _, s := range []Stage{StageConnecting, StageIngesting} {
		switch {
		case s < m.stage:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == m.stage:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *ingestModel) renderWarnings() []string {
	if len(m.warnings) == 0 {
		return nil
	}
	lines := []string{""}
	for _, w := range m.warnings {
		style := m.styles.Warning
		if !w.IsWarn {
			style = m.styles.Error
		}
		line := w.Err.Error()
		if w.Source != "" {
			line = w.Source + ": " + line
		}
		lines = append(lines, style.Render(truncate(line, m.panelWidth()-4)))
	}
	return lines
}

func (m *ingestModel) renderComplete() string {
	var lines []string
	lines = append(lines, m.styles.Success.Render("✓ Ingest complete"), "")

	for _, kind := range catalog.AllKinds {
		n, ok := m.stats.Counts[kind]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s",
			m.styles.Label.Render(fmt.Sprintf("%-11s", kind)),
			m.styles.Value.Render(humanize.Comma(int64(n)))))
	}
	lines = append(lines, fmt.Sprintf("%s %s",
		m.styles.Label.Render(fmt.Sprintf("%-11s", "duration")),
		m.styles.Value.Render(formatDuration(m.stats.Duration))))

	if m.stats.Warnings > 0 {
		lines = append(lines, "", m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.stats.Warnings)))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccent)).
		Padding(1, 2).
		Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(100 * time.Millisecond)
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), m%60)
}

// truncate shortens s to at most maxLen runes, marking the cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

var _ Renderer = (*TUIRenderer)(nil)
