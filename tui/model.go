// Package tui provides the Bubble Tea terminal UI for sitecapture,
// displaying live transfer progress and a styled summary of the run.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/mirror"
	"github.com/lukemcguire/sitecapture/result"
)

const (
	maxActive = 5
	maxRecent = 6
	maxLog    = 4
)

// Runner is the work the UI drives; *mirror.Mirror satisfies it.
type Runner interface {
	Run(ctx context.Context) (*result.Result, error)
}

// transferState tracks one in-flight transfer.
type transferState struct {
	category   asset.Category
	url        string
	label      string
	read       int64
	total      int64
	cancelling bool
}

// Model is the Bubble Tea model for the mirror TUI.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	runner   Runner
	recorder *mirror.Recorder
	cancels  *mirror.AssetCancels
	pageURL  string
	updates  <-chan mirror.Update
	logs     <-chan string

	spinner spinner.Model
	bar     progress.Model

	stages   map[mirror.Stage]mirror.StageProgress
	active   map[string]*transferState
	selected int
	recent   []string
	logTail  []string
	quitting bool
	done     bool
	result   *result.Result
	err      error
	width    int
}

// NewModel creates a TUI model wired to the given runner and channels. The
// recorder, when non-nil, must observe the same run and backs the summary.
func NewModel(ctx context.Context, cancel context.CancelFunc, runner Runner, recorder *mirror.Recorder,
	pageURL string, updates <-chan mirror.Update, logs <-chan string) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		ctx:      ctx,
		cancel:   cancel,
		runner:   runner,
		recorder: recorder,
		pageURL:  pageURL,
		updates:  updates,
		logs:     logs,
		spinner:  spin,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		stages:   make(map[mirror.Stage]mirror.StageProgress),
		active:   make(map[string]*transferState),
	}
}

// WithAssetCancels enables cancelling the selected transfer. cancels must be
// the set the run polls through Config.AssetCanceled.
func (m Model) WithAssetCancels(cancels *mirror.AssetCancels) Model {
	m.cancels = cancels
	return m
}

// Init starts the spinner, the run, and the update and log listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startMirror(), waitForUpdate(m.updates), waitForLog(m.logs))
}

// startMirror returns a tea.Cmd that runs the mirror and sends MirrorDoneMsg.
func (m Model) startMirror() tea.Cmd {
	return func() tea.Msg {
		res, err := m.runner.Run(m.ctx)
		if err != nil {
			err = fmt.Errorf("mirror: %w", err)
		}
		return MirrorDoneMsg{Result: res, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.done {
				return m, tea.Quit
			}
			// Stay up until the run returns so cancelled transfers can clean up.
			m.quitting = true
			m.cancel()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			m.selected++
			m.clampSelection()
		case "x":
			m.cancelSelected()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-30, 10), 60)

	case MirrorUpdateMsg:
		m.apply(msg.Update)
		return m, waitForUpdate(m.updates)

	case LogLineMsg:
		m.logTail = appendBounded(m.logTail, msg.Line, maxLog)
		return m, waitForLog(m.logs)

	case MirrorDoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds one observer notification into the model.
func (m *Model) apply(u mirror.Update) {
	if p := u.Progress; p != nil {
		m.stages[p.Stage] = *p
		return
	}
	ev := u.Asset
	if ev == nil {
		return
	}

	key := string(ev.Category) + " " + ev.URL
	switch ev.Kind {
	case mirror.EventStart, mirror.EventProgress:
		st, ok := m.active[key]
		if !ok {
			st = &transferState{category: ev.Category, url: ev.URL, label: fmt.Sprintf("[%s] %s", ev.Category, ev.URL)}
			m.active[key] = st
		}
		st.read, st.total = ev.Read, ev.Total
		return
	case mirror.EventDone:
		delete(m.active, key)
		m.recent = appendBounded(m.recent, successStyle.Render("✓ ")+fmt.Sprintf("[%s] %s", ev.Category, ev.Path), maxRecent)
	case mirror.EventError:
		delete(m.active, key)
		detail := result.FormatCategory(ev.ErrorCategory)
		if ev.StatusCode != 0 {
			detail = fmt.Sprintf("%d", ev.StatusCode)
		}
		m.recent = appendBounded(m.recent, errorStyle.Render("✗ ")+fmt.Sprintf("[%s] %s (%s)", ev.Category, ev.URL, detail), maxRecent)
	case mirror.EventCancelled:
		delete(m.active, key)
		m.recent = appendBounded(m.recent, dimStyle.Render(fmt.Sprintf("– [%s] %s cancelled", ev.Category, ev.URL)), maxRecent)
	}
	m.clampSelection()
}

// activeKeys returns the in-flight transfers in display order.
func (m Model) activeKeys() []string {
	keys := make([]string, 0, len(m.active))
	for k := range m.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// clampSelection keeps the cursor on a visible transfer.
func (m *Model) clampSelection() {
	visible := min(len(m.active), maxActive)
	if m.selected >= visible {
		m.selected = visible - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// cancelSelected cancels the transfer under the cursor.
func (m *Model) cancelSelected() {
	keys := m.activeKeys()
	if m.cancels == nil || m.selected >= len(keys) {
		return
	}
	st := m.active[keys[m.selected]]
	m.cancels.Cancel(st.category, st.url)
	st.cancelling = true
}

func appendBounded(lines []string, line string, limit int) []string {
	lines = append(lines, line)
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.result != nil {
		return RenderSummary(m.result, m.GetReport())
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Mirroring %s\n\n", m.spinner.View(), m.pageURL)

	for _, stage := range []mirror.Stage{mirror.StageAssets, mirror.StageStylesheetAssets} {
		p, ok := m.stages[stage]
		if !ok || p.Total == 0 {
			continue
		}
		fmt.Fprintf(&b, "%-11s %s %d/%d\n", stage, m.bar.ViewAs(float64(p.Done)/float64(p.Total)), p.Done, p.Total)
	}

	if len(m.active) > 0 {
		b.WriteString("\n")
		keys := m.activeKeys()
		for i, k := range keys {
			if i == maxActive {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  ... and %d more", len(keys)-maxActive)) + "\n")
				break
			}
			st := m.active[k]
			cursor := " "
			if m.cancels != nil && i == m.selected {
				cursor = "›"
			}
			detail := formatBytes(st.read, st.total)
			if st.cancelling {
				detail += ", cancelling"
			}
			fmt.Fprintf(&b, "%s ↓ %s %s\n", cursor, st.label, dimStyle.Render(detail))
		}
	}

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, line := range m.recent {
			b.WriteString("  " + line + "\n")
		}
	}

	if len(m.logTail) > 0 {
		b.WriteString("\n")
		for _, line := range m.logTail {
			b.WriteString(dimStyle.Render("  "+line) + "\n")
		}
	}

	switch {
	case m.quitting:
		b.WriteString("\n" + dimStyle.Render("cancelling, waiting for transfers to stop...") + "\n")
	case m.cancels != nil:
		b.WriteString("\n" + dimStyle.Render("↑/↓: select • x: cancel transfer • q: cancel all") + "\n")
	default:
		b.WriteString("\n" + dimStyle.Render("q: cancel") + "\n")
	}
	return b.String()
}

func formatBytes(read, total int64) string {
	if total > 0 {
		return fmt.Sprintf("%s / %s", humanBytes(read), humanBytes(total))
	}
	return humanBytes(read)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Cancelled reports whether the user cancelled the run before it produced
// a result.
func (m Model) Cancelled() bool {
	return m.quitting && m.result == nil
}

// GetResult returns the run result for output formatting.
func (m Model) GetResult() *result.Result {
	return m.result
}

// GetErr returns the error the run finished with.
func (m Model) GetErr() error {
	return m.err
}

// GetReport returns the per-asset report for the finished run.
func (m Model) GetReport() *result.Report {
	if m.recorder == nil {
		return &result.Report{Result: m.result}
	}
	return m.recorder.Report(m.result)
}
