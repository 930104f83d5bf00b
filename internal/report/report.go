// Package report renders run summaries and residual histories for the
// terminal.
package report

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/parareal/internal/storage"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Label = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	StatusConverged = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusExhausted = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))
)

var ErrNoState = errors.New("no final state stored")

// LogFloor replaces log10(0) in charts.
const LogFloor = -20.0

func Summary(meta storage.RunMetadata) string {
	status := StatusConverged.Render("converged")
	if !meta.Converged {
		status = StatusExhausted.Render("iteration budget exhausted")
	}

	mesh := fmt.Sprintf("%d", meta.NDOF)
	if meta.NDOFCoarse > 0 && meta.NDOFCoarse != meta.NDOF {
		mesh = fmt.Sprintf("%d -> %d", meta.NDOF, meta.NDOFCoarse)
	}

	rows := [][2]string{
		{"problem", meta.Problem},
		{"mesh", mesh},
		{"interval", fmt.Sprintf("[0, %g] in %d slices", meta.TEnd, meta.NSlices)},
		{"fine", fmt.Sprintf("%s x %d", meta.Fine, meta.NStepsFine)},
		{"coarse", fmt.Sprintf("%s x %d", meta.Coarse, meta.NStepsCoarse)},
		{"iterations", fmt.Sprintf("%d / %d", meta.Iterations, meta.IterMax)},
		{"tolerance", fmt.Sprintf("%.2e", meta.Tolerance)},
		{"serial error", fmt.Sprintf("%.3e", meta.SerialError)},
		{"status", status},
	}
	if meta.WallTime > 0 {
		rows = append(rows, [2]string{"wall time", fmt.Sprintf("%.3fs", meta.WallTime)})
	}

	var b strings.Builder
	b.WriteString(Title.Render("parareal"))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(Label.Render(fmt.Sprintf("%-13s", r[0])))
		b.WriteString(r[1])
	}
	return Panel.Render(b.String())
}

// ResidualChart plots log10 of the residual history.
func ResidualChart(history []float64) string {
	if len(history) == 0 {
		return "no residuals recorded"
	}
	data := make([]float64, len(history))
	for i, r := range history {
		if r <= 0 {
			data[i] = LogFloor
			continue
		}
		data[i] = math.Max(math.Log10(r), LogFloor)
	}
	// asciigraph needs at least two points to draw a line
	if len(data) == 1 {
		data = append(data, data[0])
	}
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("log10 max residual per iteration"),
	)
}

// StateChart plots a state vector against its index.
func StateChart(values []float64, caption string) (string, error) {
	if len(values) == 0 {
		return "", ErrNoState
	}
	data := values
	if len(data) == 1 {
		data = []float64{values[0], values[0]}
	}
	return asciigraph.Plot(data,
		asciigraph.Height(15),
		asciigraph.Width(60),
		asciigraph.Caption(caption),
	), nil
}
