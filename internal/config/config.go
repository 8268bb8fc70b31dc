// Package config provides configuration management for the trading gate.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Hard limits of the discipline rules. Configuration may tighten these but
// never loosen them.
const (
	HardMaxRiskFraction     = 0.02
	HardMinRewardRatio      = 2.0
	HardMaxExposureFraction = 0.10
	HardLossLockout         = 3

	HardPassScore       = 0.8
	HardMinLessons      = 20
	HardMinPaperTrades  = 10
	HardMinPaperWinRate = 0.40
)

// Size policies for a declared position size that exceeds the risk bound.
const (
	SizePolicyReject = "reject"
	SizePolicyClamp  = "clamp"
)

// Config holds all application configuration.
type Config struct {
	Account    AccountConfig    `mapstructure:"account"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Psychology PsychologyConfig `mapstructure:"psychology"`
	Curriculum CurriculumConfig `mapstructure:"curriculum"`
	Alignment  AlignmentConfig  `mapstructure:"alignment"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Audit      AuditConfig      `mapstructure:"audit"`
}

// AccountConfig holds account-level configuration.
type AccountConfig struct {
	Balance  float64 `mapstructure:"balance"`
	Currency string  `mapstructure:"currency"`
	Timezone string  `mapstructure:"timezone"` // calendar-day boundary for psychology state
}

// RiskConfig holds strategy validation limits.
type RiskConfig struct {
	MaxRiskFraction     float64 `mapstructure:"max_risk_fraction"`
	DefaultRiskFraction float64 `mapstructure:"default_risk_fraction"`
	MinRewardRatio      float64 `mapstructure:"min_reward_ratio"`
	MaxExposureFraction float64 `mapstructure:"max_exposure_fraction"`
	MinConfluences      int     `mapstructure:"min_confluences"`
	SizePolicy          string  `mapstructure:"size_policy"` // reject, clamp
}

// PsychologyConfig holds psychology store limits.
type PsychologyConfig struct {
	LossLockout   int `mapstructure:"loss_lockout"`
	DailyTradeCap int `mapstructure:"daily_trade_cap"`
}

// CurriculumConfig holds mentor gating thresholds.
type CurriculumConfig struct {
	PassScore              float64 `mapstructure:"pass_score"`
	MinLessons             int     `mapstructure:"min_lessons"`
	MinPaperTrades         int     `mapstructure:"min_paper_trades"`
	MinPaperWinRate        float64 `mapstructure:"min_paper_win_rate"`
	EnforceLiveEligibility bool    `mapstructure:"enforce_live_eligibility"`
}

// AlignmentConfig holds the compatible trend/setup pairs.
type AlignmentConfig struct {
	RequireDirectionMatch bool                `mapstructure:"require_direction_match"`
	Pairs                 map[string][]string `mapstructure:"pairs"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, memory
	Path   string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// AuditConfig holds audit log configuration.
type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Dir        string `mapstructure:"dir"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trading-gate"
	}
	return filepath.Join(home, ".config", "trading-gate")
}

// DefaultPairs returns the default compatible trend/setup pairs.
func DefaultPairs() map[string][]string {
	return map[string][]string{
		"BULLISH": {"BULLISH_BREAKOUT", "BULLISH_PULLBACK", "RANGE_SUPPORT"},
		"BEARISH": {"BEARISH_BREAKDOWN", "BEARISH_PULLBACK", "RANGE_RESISTANCE"},
		"RANGING": {"RANGE_SUPPORT", "RANGE_RESISTANCE", "BULLISH_REVERSAL", "BEARISH_REVERSAL"},
	}
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("account.balance", 0.0)
	v.SetDefault("account.currency", "USD")
	v.SetDefault("account.timezone", "UTC")

	v.SetDefault("risk.max_risk_fraction", HardMaxRiskFraction)
	v.SetDefault("risk.default_risk_fraction", 0.01)
	v.SetDefault("risk.min_reward_ratio", HardMinRewardRatio)
	v.SetDefault("risk.max_exposure_fraction", HardMaxExposureFraction)
	v.SetDefault("risk.min_confluences", 3)
	v.SetDefault("risk.size_policy", SizePolicyReject)

	v.SetDefault("psychology.loss_lockout", HardLossLockout)
	v.SetDefault("psychology.daily_trade_cap", 10)

	v.SetDefault("curriculum.pass_score", HardPassScore)
	v.SetDefault("curriculum.min_lessons", HardMinLessons)
	v.SetDefault("curriculum.min_paper_trades", HardMinPaperTrades)
	v.SetDefault("curriculum.min_paper_win_rate", HardMinPaperWinRate)
	v.SetDefault("curriculum.enforce_live_eligibility", false)

	v.SetDefault("alignment.require_direction_match", true)
	v.SetDefault("alignment.pairs", DefaultPairs())

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", filepath.Join(configDir, "gate.db"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "gate.log"))
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.dir", filepath.Join(configDir, "audit"))
	v.SetDefault("audit.max_size", 50)
	v.SetDefault("audit.max_backups", 30)
	v.SetDefault("audit.max_age", 365)
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	v := viper.New()
	setDefaults(v, configDir)
	cfg := &Config{}
	// Defaults are plain values; decoding them cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// Optional .env next to config.toml feeds the GATE_* overrides.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, configDir)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Account.Balance < 0 {
		return fmt.Errorf("account.balance must be non-negative")
	}
	if _, err := time.LoadLocation(c.Account.Timezone); err != nil {
		return fmt.Errorf("account.timezone %q: %w", c.Account.Timezone, err)
	}

	// Risk limits may only be tightened
	if c.Risk.MaxRiskFraction <= 0 || c.Risk.MaxRiskFraction > HardMaxRiskFraction {
		return fmt.Errorf("risk.max_risk_fraction must be in (0, %.2f]", HardMaxRiskFraction)
	}
	if c.Risk.DefaultRiskFraction <= 0 || c.Risk.DefaultRiskFraction > c.Risk.MaxRiskFraction {
		return fmt.Errorf("risk.default_risk_fraction must be in (0, max_risk_fraction]")
	}
	if c.Risk.MinRewardRatio < HardMinRewardRatio {
		return fmt.Errorf("risk.min_reward_ratio must be at least %.1f", HardMinRewardRatio)
	}
	if c.Risk.MaxExposureFraction <= 0 || c.Risk.MaxExposureFraction > HardMaxExposureFraction {
		return fmt.Errorf("risk.max_exposure_fraction must be in (0, %.2f]", HardMaxExposureFraction)
	}
	if c.Risk.MinConfluences < 0 {
		return fmt.Errorf("risk.min_confluences must be non-negative")
	}
	if c.Risk.SizePolicy != SizePolicyReject && c.Risk.SizePolicy != SizePolicyClamp {
		return fmt.Errorf("invalid risk.size_policy: %s (must be 'reject' or 'clamp')", c.Risk.SizePolicy)
	}

	if c.Psychology.LossLockout < 1 || c.Psychology.LossLockout > HardLossLockout {
		return fmt.Errorf("psychology.loss_lockout must be between 1 and %d", HardLossLockout)
	}
	if c.Psychology.DailyTradeCap < 1 {
		return fmt.Errorf("psychology.daily_trade_cap must be positive")
	}

	// Mentor thresholds may only be raised
	if c.Curriculum.PassScore < HardPassScore || c.Curriculum.PassScore > 1 {
		return fmt.Errorf("curriculum.pass_score must be in [%.2f, 1]", HardPassScore)
	}
	if c.Curriculum.MinLessons < HardMinLessons {
		return fmt.Errorf("curriculum.min_lessons must be at least %d", HardMinLessons)
	}
	if c.Curriculum.MinPaperTrades < HardMinPaperTrades {
		return fmt.Errorf("curriculum.min_paper_trades must be at least %d", HardMinPaperTrades)
	}
	if c.Curriculum.MinPaperWinRate < HardMinPaperWinRate || c.Curriculum.MinPaperWinRate > 1 {
		return fmt.Errorf("curriculum.min_paper_win_rate must be in [%.2f, 1]", HardMinPaperWinRate)
	}

	if len(c.Alignment.Pairs) == 0 {
		return fmt.Errorf("alignment.pairs must not be empty")
	}

	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "memory" {
		return fmt.Errorf("invalid storage.driver: %s (must be 'sqlite' or 'memory')", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for sqlite")
	}

	return nil
}

// Enforced returns the thresholds with the hard floors applied, so a
// configuration that skipped Validate still cannot loosen them.
func (c CurriculumConfig) Enforced() CurriculumConfig {
	c.PassScore = math.Max(c.PassScore, HardPassScore)
	c.MinLessons = max(c.MinLessons, HardMinLessons)
	c.MinPaperTrades = max(c.MinPaperTrades, HardMinPaperTrades)
	c.MinPaperWinRate = math.Max(c.MinPaperWinRate, HardMinPaperWinRate)
	return c
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Account.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
