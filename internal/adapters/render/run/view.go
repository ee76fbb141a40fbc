package run

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/autoseed-cli/internal/engine"
)

const (
	defaultLogLines = 8
	defaultBarWidth = 30
)

type RenderOptions struct {
	Title string
	// LogLines caps the log tail; zero means the default, negative hides it.
	LogLines int
	BarWidth int
	// Location formats log timestamps; nil keeps them in UTC.
	Location *time.Location
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.LogLines == 0 {
		o.LogLines = defaultLogLines
	}
	if o.BarWidth <= 0 {
		o.BarWidth = defaultBarWidth
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

func renderView(snap engine.Snapshot, opts RenderOptions, s styles) string {
	opts = opts.withDefaults()

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Campaign run"
	}

	lines := []string{
		s.title.Render(title),
		s.header.Render(statusLine(snap)),
		progressLine(snap, opts, s),
	}

	if snap.Blocked {
		lines = append(lines, s.warning.Render("[blocked] identity not confirmed; resume to retry"))
	}

	if snap.AccountName != "" || snap.AccountID != "" {
		lines = append(lines, s.account.Render(accountLabel(snap)))
	}
	if snap.Activity != "" {
		lines = append(lines, s.detail.Render(snap.Activity))
	}
	if snap.Countdown > 0 {
		lines = append(lines, s.detail.Render(fmt.Sprintf("next item in %d", snap.Countdown)))
	}
	if snap.SkipAvailable {
		lines = append(lines, s.hint.Render("waiting for the agent; skip is available"))
	}

	if opts.LogLines > 0 {
		lines = append(lines, s.section.Render(renderLog(snap.Log, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusLine(snap engine.Snapshot) string {
	if snap.Total == 0 {
		return fmt.Sprintf("status: %s", snap.Status)
	}

	index := snap.Index + 1
	if index > snap.Total {
		index = snap.Total
	}
	return fmt.Sprintf("status: %s  item %d/%d", snap.Status, index, snap.Total)
}

func progressLine(snap engine.Snapshot, opts RenderOptions, s styles) string {
	percent := clampPercent(float64(snap.Progress))
	percentStyle := lipgloss.NewStyle().Foreground(interpolateColor(percent, 0, 100))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderProgressBar(percent, opts.BarWidth, s),
		" ",
		percentStyle.Render(fmt.Sprintf("%3.0f%%", percent)),
	)
}

func accountLabel(snap engine.Snapshot) string {
	name := strings.TrimSpace(snap.AccountName)
	if name == "" {
		return fmt.Sprintf("account: %s", snap.AccountID)
	}
	if snap.AccountID == "" || name == string(snap.AccountID) {
		return fmt.Sprintf("account: %s", name)
	}
	return fmt.Sprintf("account: %s (%s)", name, snap.AccountID)
}

func renderLog(entries []engine.LogEntry, opts RenderOptions, s styles) string {
	if len(entries) == 0 {
		return s.empty.Render("No log entries yet.")
	}

	if len(entries) > opts.LogLines {
		entries = entries[len(entries)-opts.LogLines:]
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.timestamp.Render(entry.At.In(opts.Location).Format("15:04:05")),
			" ",
			s.forSeverity(entry.Severity).Render(fmt.Sprintf("%-7s", entry.Severity)),
			" ",
			s.detail.Render(entry.Message),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// FormatEntry renders one log entry as a plain line.
func FormatEntry(entry engine.LogEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s [%s] %s", entry.At.In(loc).Format("15:04:05"), entry.Severity, entry.Message)
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	done := clampPercent(percent) / 100.0
	filled := int(math.Round(float64(width) * done))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	code := int(240.0 + 15.0*normalized)
	return lipgloss.Color(fmt.Sprintf("%d", code))
}
