package models

// JournalStatistics is derived from the full TradeRecord set on demand.
type JournalStatistics struct {
	TotalTrades          int                             `json:"total_trades"`
	OpenTrades           int                             `json:"open_trades"`
	ClosedTrades         int                             `json:"closed_trades"`
	Wins                 int                             `json:"wins"`
	Losses               int                             `json:"losses"`
	Breakeven            int                             `json:"breakeven"`
	WinRate              float64                         `json:"win_rate"`
	AvgWin               float64                         `json:"avg_win"`
	AvgLoss              float64                         `json:"avg_loss"`
	Expectancy           float64                         `json:"expectancy"`
	AvgRealizedR         float64                         `json:"avg_realized_r"`
	TotalPnL             float64                         `json:"total_pnl"`
	ProfitFactor         float64                         `json:"profit_factor"`
	AdherenceRate        float64                         `json:"adherence_rate"`
	MaxConsecutiveLosses int                             `json:"max_consecutive_losses"`
	ByEmotion            map[Emotion]*EmotionPerformance `json:"by_emotion"`
	MistakeFrequency     map[string]int                  `json:"mistake_frequency"`
}

// EmotionPerformance aggregates closed trades by the emotion reported at
// proposal time.
type EmotionPerformance struct {
	Emotion  Emotion `json:"emotion"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"win_rate"`
	TotalPnL float64 `json:"total_pnl"`
	AvgPnL   float64 `json:"avg_pnl"`
	AvgR     float64 `json:"avg_r"`
}

// GroupPerformance aggregates closed trades by an arbitrary key.
type GroupPerformance struct {
	Key      string  `json:"key"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"`
	TotalPnL float64 `json:"total_pnl"`
}

// Insight is one mined observation about trading behaviour.
type Insight struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"` // info, warning, critical
	Message  string `json:"message"`
}

// PatternReport summarises recurring outcome patterns in the journal.
type PatternReport struct {
	WorstEmotion      Emotion            `json:"worst_emotion,omitempty"`
	BestEmotion       Emotion            `json:"best_emotion,omitempty"`
	TopMistake        string             `json:"top_mistake,omitempty"`
	CurrentLossStreak int                `json:"current_loss_streak"`
	LongestLossStreak int                `json:"longest_loss_streak"`
	BySymbol          []GroupPerformance `json:"by_symbol"`
	ByWeekday         []GroupPerformance `json:"by_weekday"`
	BySetup           []GroupPerformance `json:"by_setup"`
	Insights          []Insight          `json:"insights"`
}
