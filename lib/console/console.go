// Package console renders operator-facing progress: status lines, the
// fixed-width sweep table, and the safety-limit table.
package console

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gotmc/visweep"
	"github.com/gotmc/visweep/nhr"
)

var (
	OkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	WarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	FailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	HeadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// ruleWidth matches the sweep table: five 12-wide columns plus separators.
const ruleWidth = 68

// Printer writes operator-facing progress to w.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer { return &Printer{w: w} }

// Printf writes unstyled text.
func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.w, format, a...)
}

// Okf writes a success line.
func (p *Printer) Okf(format string, a ...any) {
	fmt.Fprintln(p.w, OkStyle.Render(fmt.Sprintf(format, a...)))
}

// Warnf writes a warning line.
func (p *Printer) Warnf(format string, a ...any) {
	fmt.Fprintln(p.w, WarnStyle.Render(fmt.Sprintf(format, a...)))
}

// Failf writes a failure line.
func (p *Printer) Failf(format string, a ...any) {
	fmt.Fprintln(p.w, FailStyle.Render(fmt.Sprintf(format, a...)))
}

// SweepHeader prints the column header for the nested V-I sweep table.
func (p *Printer) SweepHeader() {
	hdr := fmt.Sprintf("%-12s | %-12s | %-12s | %-12s | %-12s",
		"V Set (V)", "I Set (A)", "V Meas (V)", "I Meas (A)", "P Meas (W)")
	fmt.Fprintln(p.w, HeadStyle.Render(hdr))
	p.Rule()
}

// Rule prints the table divider.
func (p *Printer) Rule() {
	fmt.Fprintln(p.w, strings.Repeat("-", ruleWidth))
}

// SweepRow prints one sweep result. Unparsable measurements arrive as NaN
// and render as NaN.
func (p *Printer) SweepRow(r visweep.Result) {
	fmt.Fprintf(p.w, "%-12.2f | %-12.2f | %-12.2f | %-12.2f | %-12.2f\n",
		r.Outer, r.Inner, r.Voltage, r.Current, r.Power)
}

// SafetyTable prints the 16 safety-limit fields with their labels, or the
// raw response when the instrument returned an unexpected field count.
func (p *Printer) SafetyTable(sl *nhr.SafetyLimits) {
	fmt.Fprintln(p.w, HeadStyle.Render("--- Safety Limits ---"))
	if !sl.Complete() {
		p.Warnf("unexpected safety response: %s", sl.Raw)
		return
	}
	for i, lbl := range nhr.SafetyLabels {
		f := visweep.ParseFloat(sl.Fields[i])
		if math.IsNaN(f) {
			fmt.Fprintf(p.w, "%-28s: %10s\n", lbl, strings.TrimSpace(sl.Fields[i]))
		} else {
			fmt.Fprintf(p.w, "%-28s: %10.3f\n", lbl, f)
		}
	}
}
