package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"squish/internal/processor"
)

type Model struct {
	updates     <-chan processor.ProgressUpdate
	interrupt   func()
	started     time.Time
	width       int
	total       int
	processed   int
	success     int
	failed      int
	skipped     int
	bytesIn     int64
	bytesOut    int64
	currentFile string
	stopping    bool
	quitting    bool
}

type doneMsg struct{}

type updateMsg processor.ProgressUpdate

// NewModel builds the progress display. The terminal runs in raw mode
// while the program is up, so Ctrl+C arrives as a key event rather
// than a signal; interrupt is invoked once to request a graceful stop.
func NewModel(updates <-chan processor.ProgressUpdate, interrupt func()) Model {
	return Model{updates: updates, interrupt: interrupt, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.total += msg.TotalDelta
		m.processed += msg.ProcessedDelta
		m.success += msg.SuccessDelta
		m.failed += msg.FailedDelta
		m.skipped += msg.SkippedDelta
		m.bytesIn += msg.BytesInDelta
		m.bytesOut += msg.BytesOutDelta
		if msg.CurrentFile != "" {
			m.currentFile = msg.CurrentFile
		}
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		// The display must keep draining updates until the workers
		// finish, so an interrupt requests a stop without quitting.
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.stopping {
				m.stopping = true
				if m.interrupt != nil {
					m.interrupt()
				}
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.processed) / float64(m.total)
		if ratio > 1 {
			ratio = 1
		}
	}

	bar := renderBar(barWidth, ratio)
	elapsed := time.Since(m.started).Round(time.Second)

	lines := []string{
		titleStyle.Render("squish 🗜"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.processed, m.total)) +
			dimStyle.Render(fmt.Sprintf("  ok:%d skip:%d fail:%d", m.success, m.skipped, m.failed)),
		labelStyle.Render(fmt.Sprintf("Saved: %s", FormatBytes(m.bytesIn-m.bytesOut))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s  ETA: %s", elapsed, m.eta())),
		barStyle.Render(bar),
		dimStyle.Render(truncatePath(m.currentFile, barWidth+2)),
	}
	if m.stopping {
		lines = append(lines, labelStyle.Render("Stopping after current files..."))
	}

	return strings.Join(lines, "\n")
}

// eta projects the remaining time from the mean per-file rate so far.
func (m Model) eta() string {
	if m.processed == 0 || m.total == 0 {
		return "--"
	}
	remaining := m.total - m.processed
	if remaining <= 0 {
		return "0s"
	}
	perFile := time.Since(m.started) / time.Duration(m.processed)
	return (perFile * time.Duration(remaining)).Round(time.Second).String()
}

func listenForUpdates(updates <-chan processor.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func truncatePath(p string, width int) string {
	if len(p) <= width {
		return p
	}
	if width < 4 {
		return p[:width]
	}
	return "..." + p[len(p)-(width-3):]
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
