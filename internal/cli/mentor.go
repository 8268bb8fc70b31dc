package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"trading-gate/internal/curriculum"
	"trading-gate/internal/gate"
	"trading-gate/internal/models"
	"trading-gate/pkg/utils"
)

// addMentorCommands adds curriculum commands.
func addMentorCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "mentor",
		Short: "Mentor curriculum",
		Long: `Work through the 42-lesson curriculum. Live trading unlocks after the
configured number of lessons and a passing paper-trading record.`,
	}

	cmd.AddCommand(newMentorStatusCmd(app))
	cmd.AddCommand(newMentorLessonCmd(app))
	cmd.AddCommand(newMentorCompleteCmd(app))
	cmd.AddCommand(newMentorLessonsCmd(app))

	rootCmd.AddCommand(cmd)
}

func newMentorStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show curriculum progress and live eligibility",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				progress := g.Progress()
				if output.IsJSON() {
					return output.JSON(progress)
				}
				printProgress(output, progress, app.Config.Curriculum.MinLessons)
				return nil
			})
		},
	}
}

func printProgress(output *Output, p models.CurriculumProgress, minLessons int) {
	output.Bold("Curriculum")
	output.Printf("  Lessons:     %d / %d (live needs %d)\n", p.CompletedLessons, p.TotalLessons, minLessons)
	if p.NextTitle != "" {
		output.Printf("  Next:        #%d %s\n", p.CurrentLesson, p.NextTitle)
	}
	output.Printf("  Paper:       %d trades, %d wins (%s)\n", p.PaperTrades, p.PaperWins, utils.FormatPercent(p.PaperWinRate))
	output.Println()
	if p.LiveEligible {
		output.Success("✓ Eligible for live trading")
		return
	}
	output.Warning("Live trading locked")
	for _, m := range p.Missing {
		output.Printf("  - %s\n", m)
	}
}

func newMentorLessonCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "lesson [index]",
		Short: "Show a lesson (default: the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				index := g.CurrentLesson()
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid lesson index %q", args[0])
					}
					index = n
				}
				if index >= curriculum.TotalLessons {
					output.Success("✓ Curriculum complete")
					return nil
				}

				lesson, err := g.Lesson(index)
				if err != nil {
					output.Error("%v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(lesson)
				}
				output.Bold("Lesson %d: %s", lesson.Index, lesson.Title)
				output.Dim("%s", lesson.Module)
				output.Println()
				output.Println(lesson.Topic)
				output.Println()
				output.Dim("Pass the quiz with 'gate mentor complete %d <score>'", lesson.Index)
				return nil
			})
		},
	}
}

func newMentorCompleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <index> <score>",
		Short: "Record a quiz score for the current lesson",
		Long: `Record a quiz score between 0 and 1 (or a percentage such as 85%).
Lessons are completed in order and need the configured pass score.`,
		Example: `  gate mentor complete 0 0.9
  gate mentor complete 1 85%`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid lesson index %q", args[0])
			}
			score, err := parseScore(args[1])
			if err != nil {
				return err
			}

			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				result, err := g.CompleteLesson(ctx, index, score)
				if err != nil {
					output.Error("✗ %v", err)
					return err
				}
				if output.IsJSON() {
					return output.JSON(result)
				}
				output.Success("✓ Lesson %d passed with %s", result.Index, utils.FormatPercent(result.Score))
				if next := g.CurrentLesson(); next < curriculum.TotalLessons {
					if lesson, err := g.Lesson(next); err == nil {
						output.Dim("Next: #%d %s", lesson.Index, lesson.Title)
					}
				}
				return nil
			})
		},
	}
}

// parseScore accepts a fraction or a percentage.
func parseScore(s string) (float64, error) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q", s)
	}
	if percent {
		v /= 100
	}
	return v, nil
}

func newMentorLessonsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "lessons",
		Short: "List the curriculum",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withGate(cmd, func(ctx context.Context, g *gate.Gate, output *Output) error {
				lessons := g.Lessons()
				if output.IsJSON() {
					return output.JSON(lessons)
				}
				current := g.CurrentLesson()
				table := NewTable(output, "#", "", "Module", "Title")
				for _, l := range lessons {
					mark := " "
					switch {
					case l.Index < current:
						mark = output.Green("✓")
					case l.Index == current:
						mark = output.Yellow("→")
					}
					table.AddRow(fmt.Sprintf("%d", l.Index), mark, l.Module, l.Title)
				}
				table.Render()
				return nil
			})
		},
	}
}
