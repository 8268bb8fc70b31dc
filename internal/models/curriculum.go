package models

import "time"

// Lesson is one entry of the ordered curriculum.
type Lesson struct {
	Index  int    `json:"index" yaml:"-"`
	Module string `json:"module" yaml:"module"`
	Title  string `json:"title" yaml:"title"`
	Topic  string `json:"topic" yaml:"topic"`
}

// LessonResult records a passed lesson check.
type LessonResult struct {
	Index    int       `json:"index"`
	Score    float64   `json:"score"`
	PassedAt time.Time `json:"passed_at"`
}

// CurriculumState is the mentor's progress cursor and paper-trade tally.
type CurriculumState struct {
	NextLesson  int            `json:"next_lesson"`
	Results     []LessonResult `json:"results"`
	PaperTrades int            `json:"paper_trades"`
	PaperWins   int            `json:"paper_wins"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PaperWinRate returns paper wins over paper trades, 0 with no trades.
func (s *CurriculumState) PaperWinRate() float64 {
	if s.PaperTrades == 0 {
		return 0
	}
	return float64(s.PaperWins) / float64(s.PaperTrades)
}

// Clone returns a deep copy.
func (s *CurriculumState) Clone() *CurriculumState {
	if s == nil {
		return nil
	}
	out := *s
	out.Results = append([]LessonResult{}, s.Results...)
	return &out
}

// CurriculumProgress is a read-only summary of the mentor state.
type CurriculumProgress struct {
	CurrentLesson    int      `json:"current_lesson"`
	TotalLessons     int      `json:"total_lessons"`
	CompletedLessons int      `json:"completed_lessons"`
	NextTitle        string   `json:"next_title,omitempty"`
	PaperTrades      int      `json:"paper_trades"`
	PaperWins        int      `json:"paper_wins"`
	PaperWinRate     float64  `json:"paper_win_rate"`
	LiveEligible     bool     `json:"live_eligible"`
	Missing          []string `json:"missing,omitempty"`
}
