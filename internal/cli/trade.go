package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"trading-gate/internal/gate"
	"trading-gate/internal/models"
	"trading-gate/pkg/utils"
)

// addGateCommands adds the trade lifecycle commands.
func addGateCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newExecuteCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
	rootCmd.AddCommand(newEmotionCmd(app))
}

func newCheckCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <symbol>",
		Short: "Run the pre-trade check on a trade idea",
		Long: `Check a trade idea against today's psychology state and the strategy rules.

Approved ideas are written to the journal as planned trades; the printed plan
id is used with 'gate execute' and 'gate close'. Rejected ideas change nothing
and exit with status 2.`,
		Example: `  gate check BTC-USD --direction long --entry 43000 --stop 41000 --target 47000 \
    --trend bullish --setup bullish_pullback \
    --confluence ema_stack --confluence rsi=58>=50 --confluence volume_expansion \
    --emotion confident --intensity 3
  gate check ETH-USD --direction short --entry 2300 --stop 2380 --target 2140 \
    --trend bearish --setup bearish_breakdown --confluence a --confluence b --confluence c \
    --emotion neutral --paper`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proposal, err := proposalFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			emotion, err := emotionFromFlags(cmd)
			if err != nil {
				return err
			}

			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				decision, err := g.PreTradeCheck(ctx, proposal, emotion)
				if err != nil {
					output.Error("Check failed: %v", err)
					return err
				}

				if output.IsJSON() {
					if err := output.JSON(decision); err != nil {
						return err
					}
				} else {
					printDecision(output, proposal, decision)
				}

				if !decision.Approved {
					return ErrRejected
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("direction", "d", "", "Trade direction (long, short)")
	cmd.Flags().Float64("entry", 0, "Entry price")
	cmd.Flags().Float64("stop", 0, "Stop-loss price")
	cmd.Flags().Float64("target", 0, "Take-profit price")
	cmd.Flags().String("trend", "", "Higher-timeframe trend (bullish, bearish, ranging)")
	cmd.Flags().String("setup", "", "Setup type, e.g. bullish_pullback")
	cmd.Flags().StringArrayP("confluence", "c", nil, "Confluence: name, name=false, name=value>=threshold or name=value<=threshold")
	cmd.Flags().Float64("size", 0, "Declared position size in units (0 sizes from default risk)")
	cmd.Flags().String("ref", "", "Client reference used as the plan's identity")
	cmd.Flags().Bool("paper", false, "Paper trade")
	cmd.Flags().String("notes", "", "Free-form notes")
	addEmotionFlags(cmd)
	_ = cmd.MarkFlagRequired("direction")
	_ = cmd.MarkFlagRequired("entry")
	_ = cmd.MarkFlagRequired("emotion")

	return cmd
}

func addEmotionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("emotion", "m", "", "Current emotion (confident, neutral, anxious, fear, greed, revenge, fomo, hope)")
	cmd.Flags().IntP("intensity", "i", 5, "Emotion intensity (1-10)")
	cmd.Flags().String("emotion-note", "", "Note attached to the emotion report")
}

func emotionFromFlags(cmd *cobra.Command) (models.EmotionReport, error) {
	name, _ := cmd.Flags().GetString("emotion")
	intensity, _ := cmd.Flags().GetInt("intensity")
	note, _ := cmd.Flags().GetString("emotion-note")

	emotion, err := models.ParseEmotion(name)
	if err != nil {
		return models.EmotionReport{}, err
	}
	return models.EmotionReport{Emotion: emotion, Intensity: intensity, Note: note}, nil
}

func proposalFromFlags(cmd *cobra.Command, symbol string) (models.TradeProposal, error) {
	dir, _ := cmd.Flags().GetString("direction")
	entry, _ := cmd.Flags().GetFloat64("entry")
	stop, _ := cmd.Flags().GetFloat64("stop")
	target, _ := cmd.Flags().GetFloat64("target")
	trend, _ := cmd.Flags().GetString("trend")
	setup, _ := cmd.Flags().GetString("setup")
	confluences, _ := cmd.Flags().GetStringArray("confluence")
	size, _ := cmd.Flags().GetFloat64("size")
	ref, _ := cmd.Flags().GetString("ref")
	paper, _ := cmd.Flags().GetBool("paper")
	notes, _ := cmd.Flags().GetString("notes")

	direction, err := models.ParseDirection(dir)
	if err != nil {
		return models.TradeProposal{}, err
	}

	p := models.TradeProposal{
		Symbol:       strings.ToUpper(symbol),
		Direction:    direction,
		EntryPrice:   entry,
		StopPrice:    stop,
		TakeProfit:   target,
		Trend:        models.Trend(strings.ToUpper(trend)),
		Setup:        models.Setup(strings.ToUpper(setup)),
		PositionSize: size,
		ClientRef:    ref,
		Paper:        paper,
		Notes:        notes,
	}
	for _, raw := range confluences {
		c, err := ParseConfluence(raw)
		if err != nil {
			return models.TradeProposal{}, err
		}
		p.Confluences = append(p.Confluences, c)
	}
	return p, nil
}

func printDecision(output *Output, p models.TradeProposal, d *gate.Decision) {
	if d.Approved {
		output.Success("✓ APPROVED  %s %s", p.Direction, p.Symbol)
	} else {
		output.Error("✗ REJECTED  %s %s", p.Direction, p.Symbol)
	}
	output.Println()

	output.Bold("Checks")
	for _, c := range d.Validation.Checks {
		output.Printf("  %s\n", output.Check(c))
	}
	output.Println()

	output.Bold("Psychology")
	output.Printf("  Emotion:    %s (%d/10) %s\n", d.Psychology.Emotion.Emotion, d.Psychology.Emotion.Intensity, output.Classification(d.Psychology.Classification))
	output.Printf("  Today:      %d losses, %d trades\n", d.Psychology.LossCount, d.Psychology.TradeCount)
	if d.Psychology.FlagPattern {
		output.Warning("  Pattern flagged: %s", d.Psychology.Reason)
	}
	output.Println()

	if d.Sizing != nil {
		output.Bold("Sizing")
		output.Printf("  Units:      %s\n", utils.FormatUnits(d.Sizing.UnitSize))
		output.Printf("  Risk:       %s (%s of balance)\n", utils.FormatCurrency(d.Sizing.DollarRisk), utils.FormatPercent(d.Sizing.RiskFraction))
		if d.Validation.RewardRatio > 0 {
			output.Printf("  Risk:Reward %s\n", FormatRiskReward(d.Validation.RewardRatio))
		}
		output.Println()
	}

	for _, w := range d.Warnings {
		output.Warning("⚠ %s", w)
	}

	if d.Approved {
		output.Printf("  Plan ID:    %s\n", d.PlanID)
		output.Dim("Use 'gate execute %s --fill <price>' once filled", d.PlanID)
	}
}

func newExecuteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <plan-id>",
		Short: "Record the fill of a planned trade",
		Example: `  gate execute 01HQ3Z8X5J7K2M9N4P6R8T0V2W --fill 43050
  gate execute 01HQ3Z8X5J7K2M9N4P6R8T0V2W --fill 43050 --at 2024-03-04T09:30:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fill, _ := cmd.Flags().GetFloat64("fill")
			atFlag, _ := cmd.Flags().GetString("at")
			at, err := parseTimeFlag(atFlag)
			if err != nil {
				return err
			}

			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				record, err := g.ExecuteTrade(ctx, args[0], fill, at)
				if err != nil {
					output.Error("Execution failed: %v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(record)
				}
				output.Success("✓ %s %s filled at %s", record.Proposal.Direction, record.Proposal.Symbol, utils.FormatPrice(record.FillPrice))
				output.Printf("  Units:  %s\n", utils.FormatUnits(record.Sizing.UnitSize))
				output.Printf("  Stop:   %s\n", utils.FormatPrice(record.Proposal.StopPrice))
				output.Printf("  Target: %s\n", utils.FormatPrice(record.Proposal.TakeProfit))
				return nil
			})
		},
	}

	cmd.Flags().Float64("fill", 0, "Fill price")
	cmd.Flags().String("at", "", "Fill time, RFC 3339 (default: now)")
	_ = cmd.MarkFlagRequired("fill")

	return cmd
}

func newCloseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <plan-id>",
		Short: "Record the exit of an executed trade",
		Long: `Close an executed trade. Realized P&L and R are computed from the fill,
mistake tags are derived from the exit, and the result is counted against
today's loss lockout and trade cap.`,
		Example: `  gate close 01HQ3Z8X5J7K2M9N4P6R8T0V2W --exit 47000 --lessons "held to target"
  gate close 01HQ3Z8X5J7K2M9N4P6R8T0V2W --exit 40500 --mistake "moved stop" --emotion fear --intensity 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exit, _ := cmd.Flags().GetFloat64("exit")
			atFlag, _ := cmd.Flags().GetString("at")
			lessons, _ := cmd.Flags().GetString("lessons")
			mistakes, _ := cmd.Flags().GetStringArray("mistake")

			at, err := parseTimeFlag(atFlag)
			if err != nil {
				return err
			}

			req := gate.CloseRequest{
				ID:          args[0],
				ExitPrice:   exit,
				ExitTime:    at,
				Lessons:     lessons,
				MistakeTags: mistakes,
			}
			if name, _ := cmd.Flags().GetString("emotion"); name != "" {
				emotion, err := emotionFromFlags(cmd)
				if err != nil {
					return err
				}
				req.EmotionAfter = &emotion
			}

			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				result, err := g.CloseTrade(ctx, req)
				if err != nil {
					output.Error("Close failed: %v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(result)
				}

				r := result.Record
				output.Success("✓ %s %s closed at %s", r.Proposal.Direction, r.Proposal.Symbol, utils.FormatPrice(r.ExitPrice))
				output.Printf("  P&L:      %s\n", output.FormatPnL(r.RealizedPnL))
				output.Printf("  R:        %s\n", output.FormatR(r.RealizedR))
				if len(r.MistakeTags) > 0 {
					output.Printf("  Mistakes: %s\n", strings.Join(r.MistakeTags, ", "))
				}
				if result.JustLocked {
					output.Println()
					output.Error("⛔ Trading locked for today (%s)", result.LockReason)
				}
				return nil
			})
		},
	}

	cmd.Flags().Float64("exit", 0, "Exit price")
	cmd.Flags().String("at", "", "Exit time, RFC 3339 (default: now)")
	cmd.Flags().String("lessons", "", "Lessons learned")
	cmd.Flags().StringArray("mistake", nil, "Mistake tag (repeatable)")
	addEmotionFlags(cmd)
	_ = cmd.MarkFlagRequired("exit")

	return cmd
}

func newEmotionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emotion <emotion> [intensity]",
		Short: "Report how you feel right now",
		Example: `  gate emotion anxious 6
  gate emotion neutral --note "after a walk"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			emotion, err := models.ParseEmotion(args[0])
			if err != nil {
				return err
			}
			intensity := 5
			if len(args) == 2 {
				intensity, err = strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid intensity %q", args[1])
				}
			}
			note, _ := cmd.Flags().GetString("note")
			report := models.EmotionReport{Emotion: emotion, Intensity: intensity, Note: note}

			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				if err := g.ReportEmotion(ctx, report); err != nil {
					output.Error("Report failed: %v", err)
					return err
				}
				day := g.Psychology()
				if output.IsJSON() {
					return output.JSON(day)
				}
				output.Success("✓ Recorded %s (%d/10)", emotion, intensity)
				output.Printf("  Phase:    %s\n", output.Phase(day.Phase()))
				if day.Dominant != "" {
					output.Printf("  Dominant: %s\n", day.Dominant)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("note", "", "Note attached to the report")
	return cmd
}
