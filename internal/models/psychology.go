package models

import "time"

// DateLayout is the calendar-day key format.
const DateLayout = "2006-01-02"

// LockReason explains why a day is locked.
type LockReason string

const (
	LockNone       LockReason = ""
	LockLossStreak LockReason = "LOSS_LIMIT"
	LockTradeCap   LockReason = "TRADE_CAP"
)

// PsychologyPhase is the per-day state machine position.
type PsychologyPhase string

const (
	PhaseOpen   PsychologyPhase = "OPEN"
	PhaseWarned PsychologyPhase = "WARNED"
	PhaseLocked PsychologyPhase = "LOCKED"
)

// DailyPsychologyState is the discipline record for one calendar day.
type DailyPsychologyState struct {
	Date       string          `json:"date"`
	LossCount  int             `json:"loss_count"`
	TradeCount int             `json:"trade_count"`
	Locked     bool            `json:"locked"`
	LockReason LockReason      `json:"lock_reason,omitempty"`
	LockedAt   *time.Time      `json:"locked_at,omitempty"`
	Emotions   []EmotionReport `json:"emotions"`
	Dominant   Emotion         `json:"dominant,omitempty"`
	Archived   bool            `json:"archived"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewDailyPsychologyState creates a fresh state for the given day.
func NewDailyPsychologyState(date string, now time.Time) *DailyPsychologyState {
	return &DailyPsychologyState{
		Date:      date,
		Emotions:  []EmotionReport{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Phase derives the state-machine position. WARNED is not sticky: it only
// reflects the most recent emotion report.
func (s *DailyPsychologyState) Phase() PsychologyPhase {
	if s.Locked {
		return PhaseLocked
	}
	if n := len(s.Emotions); n > 0 && s.Emotions[n-1].Emotion == EmotionAnxious {
		return PhaseWarned
	}
	return PhaseOpen
}

// Clone returns a deep copy.
func (s *DailyPsychologyState) Clone() *DailyPsychologyState {
	if s == nil {
		return nil
	}
	out := *s
	out.Emotions = append([]EmotionReport{}, s.Emotions...)
	if s.LockedAt != nil {
		t := *s.LockedAt
		out.LockedAt = &t
	}
	return &out
}

// DominantEmotion returns the most frequent emotion in history, ties broken
// by the most recent report.
func DominantEmotion(history []EmotionReport) Emotion {
	counts := make(map[Emotion]int)
	lastSeen := make(map[Emotion]int)
	for i, r := range history {
		counts[r.Emotion]++
		lastSeen[r.Emotion] = i
	}

	var dominant Emotion
	best, bestIdx := 0, -1
	for e, c := range counts {
		if c > best || (c == best && lastSeen[e] > bestIdx) {
			dominant, best, bestIdx = e, c, lastSeen[e]
		}
	}
	return dominant
}
