// Package cli provides the command-line interface for the trading gate.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"trading-gate/internal/models"
	"trading-gate/pkg/utils"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer   io.Writer
	jsonMode bool
	green    lipgloss.Style
	red      lipgloss.Style
	yellow   lipgloss.Style
	cyan     lipgloss.Style
	bold     lipgloss.Style
	dim      lipgloss.Style
}

// NewOutput creates a new Output instance. Styles render through a renderer
// bound to the command's writer, so piped or captured output stays plain.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	r := lipgloss.NewRenderer(w)
	return &Output{
		writer:   w,
		jsonMode: jsonMode,
		green:    r.NewStyle().Foreground(lipgloss.Color("2")),
		red:      r.NewStyle().Foreground(lipgloss.Color("1")),
		yellow:   r.NewStyle().Foreground(lipgloss.Color("3")),
		cyan:     r.NewStyle().Foreground(lipgloss.Color("6")),
		bold:     r.NewStyle().Bold(true),
		dim:      r.NewStyle().Faint(true),
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(o.green, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(o.red, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(o.yellow, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(o.cyan, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(o.bold, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line(o.dim, format, args...)
}

func (o *Output) line(style lipgloss.Style, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, style.Render(fmt.Sprintf(format, args...)))
}

func (o *Output) Green(text string) string  { return o.green.Render(text) }
func (o *Output) Red(text string) string    { return o.red.Render(text) }
func (o *Output) Yellow(text string) string { return o.yellow.Render(text) }

// signed picks green for gains and red for losses.
func (o *Output) signed(v float64, text string) string {
	switch {
	case v > 0:
		return o.Green(text)
	case v < 0:
		return o.Red(text)
	}
	return text
}

// FormatPnL formats P&L with color.
func (o *Output) FormatPnL(pnl float64) string {
	return o.signed(pnl, utils.FormatPnL(pnl))
}

// FormatR formats an R multiple with color.
func (o *Output) FormatR(r float64) string {
	return o.signed(r, utils.FormatR(r))
}

// Check renders a validation check as a pass/fail line.
func (o *Output) Check(c models.CheckResult) string {
	if c.Passed {
		return fmt.Sprintf("%s %-20s %s", o.Green("PASS"), c.Name, c.Reason)
	}
	return fmt.Sprintf("%s %-20s [%s] %s", o.Red("FAIL"), c.Name, c.Code, c.Reason)
}

// Classification colors an emotion classification.
func (o *Output) Classification(c models.Classification) string {
	switch c {
	case models.ClassProceed:
		return o.Green(string(c))
	case models.ClassWarn:
		return o.Yellow(string(c))
	default:
		return o.Red(string(c))
	}
}

// Phase colors the day's psychology phase.
func (o *Output) Phase(p models.PsychologyPhase) string {
	switch p {
	case models.PhaseOpen:
		return o.Green("● " + string(p))
	case models.PhaseWarned:
		return o.Yellow("● " + string(p))
	default:
		return o.Red("● " + string(p))
	}
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				if n := displayWidth(cell); n > widths[i] {
					widths[i] = n
				}
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i < len(widths) {
			padding := widths[i] - displayWidth(cell)
			if padding < 0 {
				padding = 0
			}
			padded := cell + strings.Repeat(" ", padding)
			if isHeader {
				padded = t.output.bold.Render(padded)
			}
			parts = append(parts, padded)
		}
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("-", w))
	}
	t.output.Println(t.output.dim.Render(strings.Join(parts, "--")))
}

// displayWidth ignores ANSI escapes and counts wide runes.
func displayWidth(s string) int {
	return lipgloss.Width(s)
}
