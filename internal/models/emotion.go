package models

import (
	"fmt"
	"strings"
	"time"
)

// Emotion is one of the fixed self-reported emotional states.
type Emotion string

const (
	EmotionConfident Emotion = "confident"
	EmotionNeutral   Emotion = "neutral"
	EmotionAnxious   Emotion = "anxious"
	EmotionFear      Emotion = "fear"
	EmotionGreed     Emotion = "greed"
	EmotionRevenge   Emotion = "revenge"
	EmotionFOMO      Emotion = "fomo"
	EmotionHope      Emotion = "hope"
)

// AllEmotions lists every emotion in display order.
func AllEmotions() []Emotion {
	return []Emotion{
		EmotionConfident, EmotionNeutral, EmotionAnxious, EmotionFear,
		EmotionGreed, EmotionRevenge, EmotionFOMO, EmotionHope,
	}
}

// Valid reports whether e is a known emotion.
func (e Emotion) Valid() bool {
	for _, known := range AllEmotions() {
		if e == known {
			return true
		}
	}
	return false
}

// ParseEmotion parses an emotion name case-insensitively.
func ParseEmotion(s string) (Emotion, error) {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown emotion %q", s)
	}
	return e, nil
}

// EmotionReport is a single self-reported emotional state.
type EmotionReport struct {
	Emotion   Emotion   `json:"emotion"`
	Intensity int       `json:"intensity"` // 1-10
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Classification is the outcome of the pre-trade emotion check.
type Classification string

const (
	ClassProceed Classification = "PROCEED"
	ClassWarn    Classification = "WARN"
	ClassReject  Classification = "REJECT"
)

// EmotionCheck is the result of classifying an emotion report.
type EmotionCheck struct {
	Emotion        Emotion        `json:"emotion"`
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason"`
	FlagPattern    bool           `json:"flag_pattern,omitempty"`
}
