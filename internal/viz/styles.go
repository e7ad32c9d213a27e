package viz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styleSet is derived from CurrentTheme on every render so that theme
// switches take effect on the next frame.
type styleSet struct {
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	graph   lipgloss.Style
	help    lipgloss.Style
	running lipgloss.Style
	paused  lipgloss.Style
	failure lipgloss.Style
	stats   lipgloss.Style
	canvas  lipgloss.Style
	cursor  lipgloss.Style
}

func currentStyles() styleSet {
	t := CurrentTheme
	return styleSet{
		header:  lipgloss.NewStyle().Foreground(t.Secondary).Bold(true).MarginBottom(1),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:   lipgloss.NewStyle().Foreground(t.Text),
		graph:   lipgloss.NewStyle().Foreground(t.Secondary).Padding(1, 0),
		help:    lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
		running: lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		paused:  lipgloss.NewStyle().Foreground(t.Warning).Bold(true),
		failure: lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		stats: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(46),
		canvas: lipgloss.NewStyle().Foreground(t.Primary).Padding(1, 2),
		cursor: lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
	}
}

// GradientText colors each rune of text on a straight line between two
// hex colors.
func GradientText(text string, from, to lipgloss.Color) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}

	sr, sg, sb := parseHex(string(from))
	er, eg, eb := parseHex(string(to))

	var b strings.Builder
	for i, r := range runes {
		f := 0.0
		if len(runes) > 1 {
			f = float64(i) / float64(len(runes)-1)
		}
		c := fmt.Sprintf("#%02x%02x%02x", lerp(sr, er, f), lerp(sg, eg, f), lerp(sb, eb, f))
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render(string(r)))
	}
	return b.String()
}

func lerp(a, b int, f float64) int {
	return a + int(f*float64(b-a))
}

// parseHex reads #rrggbb; anything else is white.
func parseHex(hex string) (r, g, b int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 255, 255, 255
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 255, 255, 255
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func AnimatedSpinner(frame int) string {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return spinners[frame%len(spinners)]
}

// ProgressBar renders fraction (clamped to [0, 1]) as a bar of width cells.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// SparklineChart squeezes values into at most width block characters.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 || width < 1 {
		return strings.Repeat("─", max(width, 0))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	step := max(1, len(values)/width)
	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		idx := int((values[i*step] - lo) / span * float64(len(chars)-1))
		b.WriteRune(chars[max(0, min(len(chars)-1, idx))])
	}
	return b.String()
}
