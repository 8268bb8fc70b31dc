package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trading-gate/internal/audit"
	"trading-gate/internal/config"
	"trading-gate/internal/gate"
	"trading-gate/internal/logging"
	"trading-gate/internal/store"
	"trading-gate/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-03-01"
)

// ErrRejected is returned by commands whose proposal the gate rejected.
var ErrRejected = errors.New("trade rejected")

const commandTimeout = 30 * time.Second

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	ConfigDir string

	// now overrides the gate clock.
	now func() time.Time
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
		now:    time.Now,
	}

	rootCmd := &cobra.Command{
		Use:   "gate",
		Short: "Pre-trade discipline gate for crypto trading",
		Long: `gate checks every trade idea against your psychology state and strategy
rules before you are allowed to place it.

It enforces the daily loss lockout, sizes positions from account risk, keeps a
trade journal with realized R multiples and tracks the mentor curriculum that
unlocks live trading.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" {
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.ConfigDir = dir
				app.Logger = logging.NewLoggerWithConfig(logging.FromConfig(loaded.Logging))
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trading-gate)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addGateCommands(rootCmd, app)
	addPsychCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)
	addMentorCommands(rootCmd, app)
	addDashboardCommands(rootCmd, app)

	return rootCmd
}

// withGate opens the store, audit log and gate for one command and closes
// them when fn returns.
func (app *App) withGate(cmd *cobra.Command, fn func(ctx context.Context, g *gate.Gate, output *Output) error) (err error) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	logger := app.Logger.With().Str("command", cmd.CommandPath()).Logger()
	ctx, cancel := context.WithTimeout(logging.WithLogger(parent, logger), commandTimeout)
	defer cancel()

	backend, err := store.Open(app.Config.Storage)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	auditLog := audit.Nop()
	if app.Config.Audit.Enabled {
		auditLog, err = audit.NewLogger(app.Config.Audit)
		if err != nil {
			return err
		}
	}
	defer auditLog.Close()

	g, err := gate.New(ctx, app.Config, backend,
		gate.WithClock(app.now),
		gate.WithAudit(auditLog))
	if err != nil {
		return err
	}

	return fn(ctx, g, NewOutput(cmd))
}

func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Trading Gate v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the gate configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := app.ConfigDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Account")
	output.Printf("  Balance:          %s\n", utils.FormatCurrency(cfg.Account.Balance))
	output.Printf("  Timezone:         %s\n", cfg.Account.Timezone)
	output.Println()

	output.Bold("Risk")
	output.Printf("  Max Risk:         %s per trade\n", utils.FormatPercent(cfg.Risk.MaxRiskFraction))
	output.Printf("  Default Risk:     %s per trade\n", utils.FormatPercent(cfg.Risk.DefaultRiskFraction))
	output.Printf("  Min Reward:Risk:  %.1f\n", cfg.Risk.MinRewardRatio)
	output.Printf("  Max Exposure:     %s\n", utils.FormatPercent(cfg.Risk.MaxExposureFraction))
	output.Printf("  Min Confluences:  %d\n", cfg.Risk.MinConfluences)
	output.Printf("  Size Policy:      %s\n", cfg.Risk.SizePolicy)
	output.Println()

	output.Bold("Psychology")
	output.Printf("  Loss Lockout:     %d losses\n", cfg.Psychology.LossLockout)
	output.Printf("  Daily Trade Cap:  %d trades\n", cfg.Psychology.DailyTradeCap)
	output.Println()

	output.Bold("Curriculum")
	output.Printf("  Pass Score:       %s\n", utils.FormatPercent(cfg.Curriculum.PassScore))
	output.Printf("  Live Requires:    %d lessons, %d paper trades, %s win rate\n",
		cfg.Curriculum.MinLessons, cfg.Curriculum.MinPaperTrades, utils.FormatPercent(cfg.Curriculum.MinPaperWinRate))
	output.Printf("  Enforced:         %v\n", cfg.Curriculum.EnforceLiveEligibility)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Driver:           %s\n", cfg.Storage.Driver)
	output.Printf("  Path:             %s\n", cfg.Storage.Path)
	output.Printf("  Audit:            %v (%s)\n", cfg.Audit.Enabled, cfg.Audit.Dir)
}
