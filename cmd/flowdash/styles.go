package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dukex/flowdash/pkg/execution"
)

const (
	colorGreen  = "#10B981"
	colorBlue   = "#3B82F6"
	colorYellow = "#F59E0B"
	colorRed    = "#EF4444"
	colorGray   = "#6B7280"
	colorPurple = "#7C3AED"
)

var toneColors = map[execution.Tone]lipgloss.Color{
	execution.ToneNeutral: colorBlue,
	execution.ToneActive:  colorYellow,
	execution.ToneSuccess: colorGreen,
	execution.ToneDanger:  colorRed,
	execution.ToneMuted:   colorGray,
}

// styles renders for one writer; colors are dropped when it is not a terminal.
type styles struct {
	renderer *lipgloss.Renderer
	title    lipgloss.Style
	label    lipgloss.Style
	muted    lipgloss.Style
	warning  lipgloss.Style
	header   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)

	return styles{
		renderer: r,
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorPurple)),
		label:    r.NewStyle().Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color(colorGray)),
		warning:  r.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		header:   r.NewStyle().Bold(true).Padding(0, 1),
	}
}

// status renders an execution or step status as "<symbol> <label>" in its tone.
func status[S ~string](s styles, value S) string {
	p := execution.Present(value)

	return s.renderer.NewStyle().
		Foreground(toneColors[p.Tone]).
		Render(p.Symbol + " " + p.Label)
}

func (s styles) enabled(enabled bool) string {
	if enabled {
		return s.renderer.NewStyle().Foreground(lipgloss.Color(colorGreen)).Render("enabled")
	}

	return s.muted.Render("disabled")
}

func (s styles) table(headers ...string) *table.Table {
	cell := s.renderer.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.muted).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}

			return cell
		})
}
