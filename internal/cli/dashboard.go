package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"trading-gate/internal/gate"
	"trading-gate/internal/models"
	"trading-gate/pkg/utils"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F9FAFB")).
		Background(lipgloss.Color("#1F2937")).
		Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 1).
		Width(38)

	lockedPanelStyle = panelStyle.
		BorderForeground(lipgloss.Color("#EF4444"))

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))

	goodStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	badStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)
)

func addDashboardCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(&cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"status"},
		Short:   "Show the day at a glance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				d, err := g.DashboardStatus(ctx)
				if err != nil {
					output.Error("Failed to build dashboard: %v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(d)
				}
				output.Println(renderDashboard(d))
				return nil
			})
		},
	})
}

func renderDashboard(d *gate.Dashboard) string {
	title := titleStyle.Render(fmt.Sprintf("Trading Gate · %s", d.Date))
	if d.RolloverPending {
		title += " " + warnStyle.Render("(new day pending)")
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, psychologyPanel(d), riskPanel(d))
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, performancePanel(d.Statistics), curriculumPanel(d.Curriculum))

	sections := []string{title, top, bottom}
	if len(d.OpenTrades) > 0 {
		sections = append(sections, openTradesPanel(d.OpenTrades))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-12s", label)) + value
}

func psychologyPanel(d *gate.Dashboard) string {
	var phase string
	switch d.Phase {
	case models.PhaseOpen:
		phase = goodStyle.Render(string(d.Phase))
	case models.PhaseWarned:
		phase = warnStyle.Render(string(d.Phase))
	default:
		phase = badStyle.Render(string(d.Phase))
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Psychology"),
		row("Phase", phase),
		row("Losses", fmt.Sprintf("%d (%d left)", d.Psychology.LossCount, d.LossesRemaining)),
		row("Trades", fmt.Sprintf("%d (%d left)", d.Psychology.TradeCount, d.TradesRemaining)),
	}
	if d.Psychology.Dominant != "" {
		lines = append(lines, row("Dominant", string(d.Psychology.Dominant)))
	}
	style := panelStyle
	if d.Psychology.Locked {
		lines = append(lines, badStyle.Render("LOCKED: "+string(d.Psychology.LockReason)))
		style = lockedPanelStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func riskPanel(d *gate.Dashboard) string {
	used := 0.0
	if d.ExposureLimit > 0 {
		used = d.OpenExposure / d.ExposureLimit
	}
	exposure := goodStyle.Render(utils.FormatCurrency(d.OpenExposure))
	if used >= 0.8 {
		exposure = warnStyle.Render(utils.FormatCurrency(d.OpenExposure))
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Risk"),
		row("Balance", utils.FormatCurrency(d.Balance)),
		row("Open risk", exposure),
		row("Limit", fmt.Sprintf("%s (%s used)", utils.FormatCurrency(d.ExposureLimit), utils.FormatPercent(used))),
		row("Open trades", fmt.Sprintf("%d", len(d.OpenTrades))),
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func performancePanel(s models.JournalStatistics) string {
	pnl := goodStyle.Render(utils.FormatPnL(s.TotalPnL))
	if s.TotalPnL < 0 {
		pnl = badStyle.Render(utils.FormatPnL(s.TotalPnL))
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Performance"),
		row("Closed", fmt.Sprintf("%d (%d W / %d L)", s.ClosedTrades, s.Wins, s.Losses)),
		row("Win rate", utils.FormatPercent(s.WinRate)),
		row("Expectancy", utils.FormatPnL(s.Expectancy)),
		row("Avg R", utils.FormatR(s.AvgRealizedR)),
		row("Total P&L", pnl),
		row("Adherence", utils.FormatPercent(s.AdherenceRate)),
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func curriculumPanel(p models.CurriculumProgress) string {
	live := badStyle.Render("locked")
	if p.LiveEligible {
		live = goodStyle.Render("eligible")
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Mentor"),
		row("Lessons", fmt.Sprintf("%d / %d", p.CompletedLessons, p.TotalLessons)),
		row("Paper", fmt.Sprintf("%d trades, %s", p.PaperTrades, utils.FormatPercent(p.PaperWinRate))),
		row("Live", live),
	}
	if p.NextTitle != "" {
		lines = append(lines, row("Next", TruncateString(p.NextTitle, 24)))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func openTradesPanel(trades []*models.TradeRecord) string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render("Open trades")}
	for _, r := range trades {
		lines = append(lines, fmt.Sprintf("%-8s %-5s %-10s entry %s stop %s risk %s",
			string(r.Status), r.Proposal.Direction, r.Proposal.Symbol,
			utils.FormatPrice(r.Proposal.EntryPrice), utils.FormatPrice(r.Proposal.StopPrice),
			utils.FormatCurrency(r.Sizing.DollarRisk)))
	}
	return panelStyle.Width(78).Render(strings.Join(lines, "\n"))
}
