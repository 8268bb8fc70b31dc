package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trading Gate Configuration

[account]
# Account balance used for sizing and exposure checks
balance = 0.0
currency = "USD"
# Calendar-day boundary for loss counting and lockout
timezone = "UTC"

[risk]
# Maximum risk per trade as a fraction of balance (cannot exceed 0.02)
max_risk_fraction = 0.02
# Risk fraction used when a proposal declares no position size
default_risk_fraction = 0.01
# Minimum reward:risk ratio (cannot go below 2.0)
min_reward_ratio = 2.0
# Maximum open dollar risk as a fraction of balance (cannot exceed 0.10)
max_exposure_fraction = 0.10
# Minimum number of true confluences in the indicator snapshot
min_confluences = 3
# Declared size above the risk bound: "reject" or "clamp"
size_policy = "reject"

[psychology]
# Losses in one day that lock trading until the next day (1-3)
loss_lockout = 3
# Closed trades in one day that lock trading until the next day
daily_trade_cap = 10

[curriculum]
# Thresholds may be raised but not lowered
pass_score = 0.8
min_lessons = 20
min_paper_trades = 10
min_paper_win_rate = 0.40
# Reject live (non-paper) proposals until the mentor reports eligibility
enforce_live_eligibility = false

[alignment]
# Setup bias must match the trade direction
require_direction_match = true

[alignment.pairs]
BULLISH = ["BULLISH_BREAKOUT", "BULLISH_PULLBACK", "RANGE_SUPPORT"]
BEARISH = ["BEARISH_BREAKDOWN", "BEARISH_PULLBACK", "RANGE_RESISTANCE"]
RANGING = ["RANGE_SUPPORT", "RANGE_RESISTANCE", "BULLISH_REVERSAL", "BEARISH_REVERSAL"]

[storage]
# "sqlite" or "memory"
driver = "sqlite"

[logging]
level = "info"
console = true
file = true

[audit]
enabled = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
