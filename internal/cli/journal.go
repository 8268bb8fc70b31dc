package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trading-gate/internal/gate"
	"trading-gate/internal/models"
	"trading-gate/internal/store"
	"trading-gate/pkg/utils"
)

// addJournalCommands adds journal commands.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Trade journal",
		Long:  "Review planned, executed and closed trades and analyze your results.",
	}

	cmd.AddCommand(newJournalListCmd(app))
	cmd.AddCommand(newJournalShowCmd(app))
	cmd.AddCommand(newJournalStatsCmd(app))
	cmd.AddCommand(newJournalPatternsCmd(app))

	rootCmd.AddCommand(cmd)
}

func newJournalListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal records",
		Example: `  gate journal list
  gate journal list --symbol BTC-USD --status closed --since 2024-03-01
  gate journal list --paper`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := tradeFilterFromFlags(cmd, app.Config.Location())
			if err != nil {
				return err
			}

			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				records, err := g.Trades(ctx, filter)
				if err != nil {
					output.Error("Failed to fetch trades: %v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(records)
				}
				if len(records) == 0 {
					output.Info("No trades recorded.")
					output.Dim("Tip: approved 'gate check' runs are journaled as planned trades.")
					return nil
				}

				loc := app.Config.Location()
				table := NewTable(output, "ID", "Planned", "Symbol", "Side", "Status", "Entry", "Exit", "P&L", "R")
				for _, r := range records {
					exit, pnl, rr := "-", "-", "-"
					if r.Status == models.TradeClosed {
						exit = utils.FormatPrice(r.ExitPrice)
						pnl = output.FormatPnL(r.RealizedPnL)
						rr = output.FormatR(r.RealizedR)
					}
					symbol := r.Proposal.Symbol
					if r.Paper {
						symbol += " (paper)"
					}
					table.AddRow(
						r.ID,
						FormatDateTime(r.PlannedAt, loc),
						symbol,
						string(r.Proposal.Direction),
						string(r.Status),
						utils.FormatPrice(r.Proposal.EntryPrice),
						exit,
						pnl,
						rr,
					)
				}
				table.Render()
				return nil
			})
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "Filter by symbol")
	cmd.Flags().String("status", "", "Filter by status (planned, executed, closed)")
	cmd.Flags().Bool("paper", false, "Only paper trades")
	cmd.Flags().Bool("live", false, "Only live trades")
	cmd.Flags().String("since", "", "Only trades planned on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntP("limit", "n", 50, "Maximum number of records")
	cmd.MarkFlagsMutuallyExclusive("paper", "live")

	return cmd
}

func tradeFilterFromFlags(cmd *cobra.Command, loc *time.Location) (store.TradeFilter, error) {
	symbol, _ := cmd.Flags().GetString("symbol")
	status, _ := cmd.Flags().GetString("status")
	paper, _ := cmd.Flags().GetBool("paper")
	live, _ := cmd.Flags().GetBool("live")
	since, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := store.TradeFilter{
		Symbol: strings.ToUpper(symbol),
		Status: models.TradeStatus(strings.ToUpper(status)),
		Limit:  limit,
	}
	switch filter.Status {
	case "", models.TradePlanned, models.TradeExecuted, models.TradeClosed:
	default:
		return filter, fmt.Errorf("unknown status %q", status)
	}
	if paper || live {
		filter.Paper = &paper
	}
	if since != "" {
		t, err := time.ParseInLocation("2006-01-02", since, loc)
		if err != nil {
			return filter, fmt.Errorf("invalid --since %q, want YYYY-MM-DD", since)
		}
		filter.Since = t
	}
	return filter, nil
}

func newJournalShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one journal record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				r, err := g.Trade(args[0])
				if err != nil {
					output.Error("Failed to load trade: %v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(r)
				}
				printRecord(output, r, app.Config.Location())
				return nil
			})
		},
	}
}

func printRecord(output *Output, r *models.TradeRecord, loc *time.Location) {
	p := r.Proposal
	title := fmt.Sprintf("%s %s", p.Direction, p.Symbol)
	if r.Paper {
		title += " (paper)"
	}
	output.Bold("Trade %s: %s", r.ID, title)
	output.Printf("  Status:     %s\n", r.Status)
	output.Printf("  Setup:      %s in %s trend\n", p.Setup, p.Trend)
	output.Printf("  Levels:     entry %s  stop %s  target %s\n",
		utils.FormatPrice(p.EntryPrice), utils.FormatPrice(p.StopPrice), utils.FormatPrice(p.TakeProfit))
	output.Printf("  Size:       %s units, %s at risk\n", utils.FormatUnits(r.Sizing.UnitSize), utils.FormatCurrency(r.Sizing.DollarRisk))
	output.Printf("  Planned:    %s\n", FormatDateTime(r.PlannedAt, loc))
	if r.FilledAt != nil {
		output.Printf("  Filled:     %s at %s\n", FormatDateTime(*r.FilledAt, loc), utils.FormatPrice(r.FillPrice))
	}
	if r.ClosedAt != nil {
		output.Printf("  Closed:     %s at %s\n", FormatDateTime(*r.ClosedAt, loc), utils.FormatPrice(r.ExitPrice))
		output.Printf("  Result:     %s  %s\n", output.FormatPnL(r.RealizedPnL), output.FormatR(r.RealizedR))
	}
	output.Println()

	output.Bold("Psychology at entry")
	output.Printf("  %s (%d/10) %s\n", r.Psychology.Emotion.Emotion, r.Psychology.Emotion.Intensity, output.Classification(r.Psychology.Classification))
	if r.EmotionAfter != nil {
		output.Printf("  After: %s (%d/10)\n", r.EmotionAfter.Emotion, r.EmotionAfter.Intensity)
	}
	output.Println()

	output.Bold("Checks")
	for _, c := range r.Validation.Checks {
		output.Printf("  %s\n", output.Check(c))
	}

	if len(r.MistakeTags) > 0 || r.Lessons != "" || p.Notes != "" {
		output.Println()
		output.Bold("Review")
		if p.Notes != "" {
			output.Printf("  Notes:    %s\n", p.Notes)
		}
		if len(r.MistakeTags) > 0 {
			output.Printf("  Mistakes: %s\n", strings.Join(r.MistakeTags, ", "))
		}
		if r.Lessons != "" {
			output.Printf("  Lessons:  %s\n", r.Lessons)
		}
	}
}

func newJournalStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show journal statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				stats := g.Statistics()
				if output.IsJSON() {
					return output.JSON(stats)
				}
				printStatistics(output, stats)
				return nil
			})
		},
	}
}

func printStatistics(output *Output, s models.JournalStatistics) {
	output.Bold("Performance")
	output.Printf("  Trades:         %d closed, %d open\n", s.ClosedTrades, s.OpenTrades)
	output.Printf("  Wins/Losses:    %d/%d (%d breakeven)\n", s.Wins, s.Losses, s.Breakeven)
	output.Printf("  Win Rate:       %s\n", utils.FormatPercent(s.WinRate))
	output.Printf("  Avg Win/Loss:   %s / %s\n", utils.FormatCurrency(s.AvgWin), utils.FormatCurrency(s.AvgLoss))
	output.Printf("  Expectancy:     %s\n", output.FormatPnL(s.Expectancy))
	output.Printf("  Avg R:          %s\n", output.FormatR(s.AvgRealizedR))
	output.Printf("  Total P&L:      %s\n", output.FormatPnL(s.TotalPnL))
	output.Printf("  Profit Factor:  %.2f\n", s.ProfitFactor)
	output.Printf("  Adherence:      %s\n", utils.FormatPercent(s.AdherenceRate))
	output.Printf("  Max Loss Run:   %d\n", s.MaxConsecutiveLosses)

	if len(s.ByEmotion) > 0 {
		output.Println()
		output.Bold("By Emotion")
		table := NewTable(output, "Emotion", "Trades", "Win Rate", "Avg P&L", "Avg R")
		for _, e := range models.AllEmotions() {
			perf, ok := s.ByEmotion[e]
			if !ok {
				continue
			}
			table.AddRow(string(e), fmt.Sprintf("%d", perf.Trades), utils.FormatPercent(perf.WinRate), output.FormatPnL(perf.AvgPnL), output.FormatR(perf.AvgR))
		}
		table.Render()
	}

	if len(s.MistakeFrequency) > 0 {
		output.Println()
		output.Bold("Mistakes")
		for _, tag := range sortedKeys(s.MistakeFrequency) {
			output.Printf("  %-16s %d\n", tag, s.MistakeFrequency[tag])
		}
	}
}

func newJournalPatternsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Analyze behavioural patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				report := g.Patterns()
				if output.IsJSON() {
					return output.JSON(report)
				}

				output.Bold("Patterns")
				if report.BestEmotion != "" {
					output.Printf("  Best emotion:   %s\n", report.BestEmotion)
					output.Printf("  Worst emotion:  %s\n", report.WorstEmotion)
				}
				if report.TopMistake != "" {
					output.Printf("  Top mistake:    %s\n", report.TopMistake)
				}
				output.Printf("  Loss streak:    %d now, %d longest\n", report.CurrentLossStreak, report.LongestLossStreak)

				printGroups(output, "By Symbol", report.BySymbol)
				printGroups(output, "By Setup", report.BySetup)
				printGroups(output, "By Weekday", report.ByWeekday)

				if len(report.Insights) > 0 {
					output.Println()
					output.Bold("Insights")
					for _, in := range report.Insights {
						switch in.Severity {
						case "critical":
							output.Error("  ✗ %s", in.Message)
						case "warning":
							output.Warning("  ⚠ %s", in.Message)
						default:
							output.Info("  • %s", in.Message)
						}
					}
				}
				return nil
			})
		},
	}
}

func printGroups(output *Output, title string, groups []models.GroupPerformance) {
	if len(groups) == 0 {
		return
	}
	output.Println()
	output.Bold(title)
	table := NewTable(output, "Key", "Trades", "Win Rate", "P&L")
	for _, gp := range groups {
		table.AddRow(gp.Key, fmt.Sprintf("%d", gp.Trades), utils.FormatPercent(gp.WinRate), output.FormatPnL(gp.TotalPnL))
	}
	table.Render()
}
