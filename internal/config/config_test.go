package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default(t.TempDir())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.02, cfg.Risk.MaxRiskFraction)
	assert.Equal(t, 0.01, cfg.Risk.DefaultRiskFraction)
	assert.Equal(t, 2.0, cfg.Risk.MinRewardRatio)
	assert.Equal(t, 0.10, cfg.Risk.MaxExposureFraction)
	assert.Equal(t, 3, cfg.Risk.MinConfluences)
	assert.Equal(t, SizePolicyReject, cfg.Risk.SizePolicy)
	assert.Equal(t, 3, cfg.Psychology.LossLockout)
	assert.Equal(t, 10, cfg.Psychology.DailyTradeCap)
	assert.Equal(t, 0.8, cfg.Curriculum.PassScore)
	assert.Equal(t, 20, cfg.Curriculum.MinLessons)
	assert.Equal(t, 10, cfg.Curriculum.MinPaperTrades)
	assert.Equal(t, 0.40, cfg.Curriculum.MinPaperWinRate)
	assert.NotEmpty(t, cfg.Alignment.Pairs)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoadCreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.Equal(t, filepath.Join(dir, "gate.db"), cfg.Storage.Path)

	// Second load reads the template back.
	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Risk, again.Risk)
	assert.Len(t, again.Alignment.Pairs, 3)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
[account]
balance = 6167.43

[risk]
min_confluences = 4
size_policy = "clamp"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
	t.Setenv("GATE_PSYCHOLOGY_DAILY_TRADE_CAP", "5")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.InDelta(t, 6167.43, cfg.Account.Balance, 1e-9)
	assert.Equal(t, 4, cfg.Risk.MinConfluences)
	assert.Equal(t, SizePolicyClamp, cfg.Risk.SizePolicy)
	assert.Equal(t, 5, cfg.Psychology.DailyTradeCap)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.02, cfg.Risk.MaxRiskFraction)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GATE_ACCOUNT_BALANCE=2500\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("GATE_ACCOUNT_BALANCE") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.InDelta(t, 2500.0, cfg.Account.Balance, 1e-9)
}

func TestValidateRejectsLoosening(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"risk above hard cap", func(c *Config) { c.Risk.MaxRiskFraction = 0.03 }},
		{"default above max", func(c *Config) { c.Risk.DefaultRiskFraction = 0.025 }},
		{"reward below 2", func(c *Config) { c.Risk.MinRewardRatio = 1.5 }},
		{"exposure above 10%", func(c *Config) { c.Risk.MaxExposureFraction = 0.2 }},
		{"loss lockout above 3", func(c *Config) { c.Psychology.LossLockout = 4 }},
		{"zero trade cap", func(c *Config) { c.Psychology.DailyTradeCap = 0 }},
		{"unknown size policy", func(c *Config) { c.Risk.SizePolicy = "warn" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"bad timezone", func(c *Config) { c.Account.Timezone = "Mars/Olympus" }},
		{"pass score above 1", func(c *Config) { c.Curriculum.PassScore = 1.2 }},
		{"pass score below 0.8", func(c *Config) { c.Curriculum.PassScore = 0.5 }},
		{"min lessons below 20", func(c *Config) { c.Curriculum.MinLessons = 0 }},
		{"min paper trades below 10", func(c *Config) { c.Curriculum.MinPaperTrades = 0 }},
		{"paper win rate below 40%", func(c *Config) { c.Curriculum.MinPaperWinRate = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAllowsTightening(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Risk.MaxRiskFraction = 0.01
	cfg.Risk.DefaultRiskFraction = 0.005
	cfg.Risk.MinRewardRatio = 3
	cfg.Risk.MaxExposureFraction = 0.05
	cfg.Psychology.LossLockout = 2
	cfg.Curriculum.PassScore = 0.9
	cfg.Curriculum.MinLessons = 30
	cfg.Curriculum.MinPaperTrades = 25
	cfg.Curriculum.MinPaperWinRate = 0.5
	assert.NoError(t, cfg.Validate())
}

func TestCurriculumEnforcedKeepsFloors(t *testing.T) {
	loose := CurriculumConfig{PassScore: 0.5, MinLessons: 0, MinPaperTrades: 0, MinPaperWinRate: 0}
	got := loose.Enforced()
	assert.Equal(t, HardPassScore, got.PassScore)
	assert.Equal(t, HardMinLessons, got.MinLessons)
	assert.Equal(t, HardMinPaperTrades, got.MinPaperTrades)
	assert.Equal(t, HardMinPaperWinRate, got.MinPaperWinRate)

	strict := CurriculumConfig{PassScore: 0.9, MinLessons: 30, MinPaperTrades: 12, MinPaperWinRate: 0.6}
	assert.Equal(t, strict, strict.Enforced())
}
