// Package audit provides the append-only audit and pattern log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"trading-gate/internal/config"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Decision events
	EventTradeApproved EventType = "TRADE_APPROVED"
	EventTradeRejected EventType = "TRADE_REJECTED"

	// Discipline events
	EventLockout        EventType = "LOCKOUT"
	EventPatternFlagged EventType = "PATTERN_FLAGGED"
	EventDayRollover    EventType = "DAY_ROLLOVER"

	// Lifecycle events
	EventTradeExecuted EventType = "TRADE_EXECUTED"
	EventTradeClosed   EventType = "TRADE_CLOSED"

	// Curriculum events
	EventLessonCompleted EventType = "LESSON_COMPLETED"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	TradeID   string                 `json:"trade_id,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// Logger handles audit logging for gate decisions.
type Logger struct {
	writer    io.WriteCloser
	mu        sync.Mutex
	sessionID string
	now       func() time.Time
}

// NewLogger creates an audit logger writing to dir/audit.log.
func NewLogger(cfg config.AuditConfig) (*Logger, error) {
	// Audit directory is private to the user
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}

	return NewWriterLogger(writer), nil
}

// NewWriterLogger creates an audit logger over an arbitrary writer.
func NewWriterLogger(w io.WriteCloser) *Logger {
	return &Logger{
		writer:    w,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

// Nop returns an audit logger that discards events.
func Nop() *Logger {
	return NewWriterLogger(nopCloser{io.Discard})
}

// SessionID returns the id stamped on every event of this process.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// Log logs an audit event.
func (l *Logger) Log(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	event.Timestamp = l.now().UTC()
	event.SessionID = l.sessionID

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}

	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}

	return nil
}

// LogDecision logs an approval or rejection of a proposal.
func (l *Logger) LogDecision(ctx context.Context, symbol, planID string, approved bool, reasons []string) error {
	eventType := EventTradeApproved
	if !approved {
		eventType = EventTradeRejected
	}
	return l.Log(ctx, Event{
		EventType: eventType,
		TradeID:   planID,
		Symbol:    symbol,
		Success:   approved,
		Details: map[string]interface{}{
			"reasons": reasons,
		},
	})
}

// LogPattern logs a revenge or FOMO proposal.
func (l *Logger) LogPattern(ctx context.Context, symbol, emotion string, intensity int) error {
	return l.Log(ctx, Event{
		EventType: EventPatternFlagged,
		Symbol:    symbol,
		Action:    emotion,
		Success:   false,
		Details: map[string]interface{}{
			"intensity": intensity,
		},
	})
}

// LogLockout logs the day lockout.
func (l *Logger) LogLockout(ctx context.Context, date, reason string, losses, trades int) error {
	return l.Log(ctx, Event{
		EventType: EventLockout,
		Action:    reason,
		Success:   true,
		Details: map[string]interface{}{
			"date":   date,
			"losses": losses,
			"trades": trades,
		},
	})
}

// LogRollover logs a day transition.
func (l *Logger) LogRollover(ctx context.Context, from, to string) error {
	return l.Log(ctx, Event{
		EventType: EventDayRollover,
		Success:   true,
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	})
}

// LogExecution logs a fill recorded against a plan.
func (l *Logger) LogExecution(ctx context.Context, tradeID, symbol string, fill float64) error {
	return l.Log(ctx, Event{
		EventType: EventTradeExecuted,
		TradeID:   tradeID,
		Symbol:    symbol,
		Success:   true,
		Details: map[string]interface{}{
			"fill_price": fill,
		},
	})
}

// LogClose logs a closed trade.
func (l *Logger) LogClose(ctx context.Context, tradeID, symbol string, exit, pnl, r float64) error {
	return l.Log(ctx, Event{
		EventType: EventTradeClosed,
		TradeID:   tradeID,
		Symbol:    symbol,
		Success:   true,
		Details: map[string]interface{}{
			"exit_price":   exit,
			"realized_pnl": pnl,
			"realized_r":   r,
		},
	})
}

// LogLesson logs a lesson completion attempt.
func (l *Logger) LogLesson(ctx context.Context, index int, score float64, passed bool, errorMsg string) error {
	return l.Log(ctx, Event{
		EventType: EventLessonCompleted,
		Success:   passed,
		ErrorMsg:  errorMsg,
		Details: map[string]interface{}{
			"lesson": index,
			"score":  score,
		},
	})
}

// Close closes the audit logger.
func (l *Logger) Close() error {
	return l.writer.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
