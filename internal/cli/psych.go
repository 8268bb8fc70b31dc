package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"trading-gate/internal/gate"
)

// addPsychCommands adds psychology state commands.
func addPsychCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "psych",
		Aliases: []string{"psychology"},
		Short:   "Daily psychology state",
		Long:    "Inspect today's loss count, trade count, emotions and lockout.",
	}

	cmd.AddCommand(newPsychStatusCmd(app))
	cmd.AddCommand(newPsychHistoryCmd(app))

	rootCmd.AddCommand(cmd)
}

func newPsychStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's psychology state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				day := g.Psychology()
				if output.IsJSON() {
					return output.JSON(day)
				}

				loc := app.Config.Location()
				output.Bold("Psychology - %s", day.Date)
				output.Printf("  Phase:   %s\n", output.Phase(day.Phase()))
				output.Printf("  Losses:  %d / %d\n", day.LossCount, app.Config.Psychology.LossLockout)
				output.Printf("  Trades:  %d / %d\n", day.TradeCount, app.Config.Psychology.DailyTradeCap)
				if day.Locked {
					locked := ""
					if day.LockedAt != nil {
						locked = " at " + FormatTime(*day.LockedAt, loc)
					}
					output.Error("  Locked%s: %s", locked, day.LockReason)
				}
				output.Println()

				if len(day.Emotions) == 0 {
					output.Dim("No emotions reported today.")
					return nil
				}
				output.Bold("Emotions")
				table := NewTable(output, "Time", "Emotion", "Intensity", "Note")
				for _, e := range day.Emotions {
					table.AddRow(FormatTime(e.Timestamp, loc), string(e.Emotion), fmt.Sprintf("%d", e.Intensity), TruncateString(e.Note, 40))
				}
				table.Render()
				if day.Dominant != "" {
					output.Printf("\n  Dominant: %s\n", day.Dominant)
				}
				return nil
			})
		},
	}
}

func newPsychHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived days",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				days, err := g.PsychologyHistory(ctx, limit)
				if err != nil {
					output.Error("Failed to load history: %v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(days)
				}
				if len(days) == 0 {
					output.Info("No archived days yet.")
					return nil
				}

				table := NewTable(output, "Date", "Losses", "Trades", "Locked", "Dominant")
				for _, d := range days {
					locked := "-"
					if d.Locked {
						locked = output.Red(string(d.LockReason))
					}
					table.AddRow(d.Date, fmt.Sprintf("%d", d.LossCount), fmt.Sprintf("%d", d.TradeCount), locked, string(d.Dominant))
				}
				table.Render()
				return nil
			})
		},
	}

	cmd.Flags().IntP("limit", "n", 30, "Maximum number of days")
	return cmd
}
