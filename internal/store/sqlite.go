package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-gate/internal/errors"
	"trading-gate/internal/models"
)

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements StateStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based state store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.NewPersistenceError("open", fmt.Errorf("failed to create database directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewPersistenceError("open", fmt.Errorf("failed to open database: %w", err))
	}

	// Single writer per account
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewPersistenceError("open", fmt.Errorf("failed to initialize schema: %w", err))
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per calendar day of discipline state
	CREATE TABLE IF NOT EXISTS psychology_days (
		date TEXT PRIMARY KEY,
		loss_count INTEGER NOT NULL DEFAULT 0,
		trade_count INTEGER NOT NULL DEFAULT 0,
		locked INTEGER NOT NULL DEFAULT 0,
		lock_reason TEXT,
		locked_at TEXT,
		emotions TEXT NOT NULL DEFAULT '[]',
		dominant TEXT,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Journal records; the full record is kept as JSON
	CREATE TABLE IF NOT EXISTS trade_records (
		id TEXT PRIMARY KEY,
		logical_key TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		status TEXT NOT NULL,
		is_paper INTEGER NOT NULL DEFAULT 0,
		planned_at TEXT NOT NULL,
		closed_at TEXT,
		realized_pnl REAL,
		data TEXT NOT NULL
	);

	-- Mentor cursor and paper tally (single row)
	CREATE TABLE IF NOT EXISTS curriculum_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_lesson INTEGER NOT NULL DEFAULT 0,
		paper_trades INTEGER NOT NULL DEFAULT 0,
		paper_wins INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Passed lesson checks
	CREATE TABLE IF NOT EXISTS lesson_results (
		lesson_index INTEGER PRIMARY KEY,
		score REAL NOT NULL,
		passed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_days_archived ON psychology_days(archived);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trade_records(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trade_records(status);
	CREATE INDEX IF NOT EXISTS idx_trades_planned ON trade_records(planned_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Psychology Days
// ============================================================================

// SaveDay upserts a day state.
func (s *SQLiteStore) SaveDay(ctx context.Context, day *models.DailyPsychologyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emotions, err := json.Marshal(day.Emotions)
	if err != nil {
		return errors.NewPersistenceError("save day", fmt.Errorf("failed to encode emotions: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO psychology_days (date, loss_count, trade_count, locked, lock_reason, locked_at, emotions, dominant, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			loss_count = excluded.loss_count,
			trade_count = excluded.trade_count,
			locked = excluded.locked,
			lock_reason = excluded.lock_reason,
			locked_at = excluded.locked_at,
			emotions = excluded.emotions,
			dominant = excluded.dominant,
			archived = excluded.archived,
			updated_at = excluded.updated_at
	`, day.Date, day.LossCount, day.TradeCount, boolToInt(day.Locked), string(day.LockReason),
		formatTimePtr(day.LockedAt), string(emotions), string(day.Dominant), boolToInt(day.Archived),
		formatTime(day.CreatedAt), formatTime(day.UpdatedAt))
	if err != nil {
		return errors.NewPersistenceError("save day", fmt.Errorf("failed to save day %s: %w", day.Date, err))
	}
	return nil
}

const dayColumns = `date, loss_count, trade_count, locked, lock_reason, locked_at, emotions, dominant, archived, created_at, updated_at`

// GetDay retrieves the state of one calendar day.
func (s *SQLiteStore) GetDay(ctx context.Context, date string) (*models.DailyPsychologyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+dayColumns+` FROM psychology_days WHERE date = ?`, date)
	day, err := scanDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("day %s: %w", date, errors.ErrNotFound)
	}
	if err != nil {
		return nil, errors.NewPersistenceError("get day", err)
	}
	return day, nil
}

// CurrentDay retrieves the latest non-archived day.
func (s *SQLiteStore) CurrentDay(ctx context.Context) (*models.DailyPsychologyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+dayColumns+` FROM psychology_days WHERE archived = 0 ORDER BY date DESC LIMIT 1`)
	day, err := scanDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("current day: %w", errors.ErrNotFound)
	}
	if err != nil {
		return nil, errors.NewPersistenceError("current day", err)
	}
	return day, nil
}

// ListDays retrieves days, newest first.
func (s *SQLiteStore) ListDays(ctx context.Context, filter DayFilter) ([]*models.DailyPsychologyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + dayColumns + ` FROM psychology_days WHERE 1=1`
	args := []interface{}{}

	if filter.ArchivedOnly {
		query += " AND archived = 1"
	}
	query += " ORDER BY date DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewPersistenceError("list days", fmt.Errorf("failed to query days: %w", err))
	}
	defer rows.Close()

	var days []*models.DailyPsychologyState
	for rows.Next() {
		day, err := scanDay(rows)
		if err != nil {
			return nil, errors.NewPersistenceError("list days", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("list days", fmt.Errorf("error iterating days: %w", err))
	}
	return days, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDay(row scanner) (*models.DailyPsychologyState, error) {
	var (
		day                  models.DailyPsychologyState
		locked, archived     int
		lockReason, dominant sql.NullString
		lockedAt             sql.NullString
		emotions             string
		createdAt, updatedAt string
	)

	if err := row.Scan(&day.Date, &day.LossCount, &day.TradeCount, &locked, &lockReason, &lockedAt,
		&emotions, &dominant, &archived, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	day.Locked = locked != 0
	day.Archived = archived != 0
	day.LockReason = models.LockReason(lockReason.String)
	day.Dominant = models.Emotion(dominant.String)

	if err := json.Unmarshal([]byte(emotions), &day.Emotions); err != nil {
		return nil, fmt.Errorf("failed to decode emotions for %s: %w", day.Date, err)
	}
	if day.Emotions == nil {
		day.Emotions = []models.EmotionReport{}
	}

	var err error
	if day.LockedAt, err = parseTimePtr(lockedAt); err != nil {
		return nil, err
	}
	if day.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if day.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &day, nil
}

// ============================================================================
// Trade Records
// ============================================================================

// SaveTrade upserts a trade record.
func (s *SQLiteStore) SaveTrade(ctx context.Context, record *models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return errors.NewPersistenceError("save trade", fmt.Errorf("failed to encode trade: %w", err))
	}

	var realized interface{}
	if record.Status == models.TradeClosed {
		realized = record.RealizedPnL
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trade_records (id, logical_key, symbol, status, is_paper, planned_at, closed_at, realized_pnl, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			closed_at = excluded.closed_at,
			realized_pnl = excluded.realized_pnl,
			data = excluded.data
	`, record.ID, record.LogicalKey, record.Proposal.Symbol, string(record.Status), boolToInt(record.Paper),
		formatTime(record.PlannedAt), formatTimePtr(record.ClosedAt), realized, string(data))
	if err != nil {
		return errors.NewPersistenceError("save trade", fmt.Errorf("failed to save trade %s: %w", record.ID, err))
	}
	return nil
}

// GetTrade retrieves a trade record by id.
func (s *SQLiteStore) GetTrade(ctx context.Context, id string) (*models.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM trade_records WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trade %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, errors.NewPersistenceError("get trade", fmt.Errorf("failed to get trade %s: %w", id, err))
	}
	return decodeTrade(data)
}

// ListTrades retrieves trade records in plan order.
func (s *SQLiteStore) ListTrades(ctx context.Context, filter TradeFilter) ([]*models.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT data FROM trade_records WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Paper != nil {
		query += " AND is_paper = ?"
		args = append(args, boolToInt(*filter.Paper))
	}
	if !filter.Since.IsZero() {
		query += " AND planned_at >= ?"
		args = append(args, formatTime(filter.Since))
	}

	query += " ORDER BY planned_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewPersistenceError("list trades", fmt.Errorf("failed to query trades: %w", err))
	}
	defer rows.Close()

	var records []*models.TradeRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewPersistenceError("list trades", fmt.Errorf("failed to scan trade: %w", err))
		}
		record, err := decodeTrade(data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("list trades", fmt.Errorf("error iterating trades: %w", err))
	}
	return records, nil
}

func decodeTrade(data string) (*models.TradeRecord, error) {
	var record models.TradeRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, errors.NewPersistenceError("decode trade", err)
	}
	return &record, nil
}

// ============================================================================
// Curriculum
// ============================================================================

// SaveCurriculum writes the mentor cursor and all lesson results atomically.
func (s *SQLiteStore) SaveCurriculum(ctx context.Context, state *models.CurriculumState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistenceError("save curriculum", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO curriculum_state (id, next_lesson, paper_trades, paper_wins, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			next_lesson = excluded.next_lesson,
			paper_trades = excluded.paper_trades,
			paper_wins = excluded.paper_wins,
			updated_at = excluded.updated_at
	`, state.NextLesson, state.PaperTrades, state.PaperWins, formatTime(state.UpdatedAt))
	if err != nil {
		return errors.NewPersistenceError("save curriculum", fmt.Errorf("failed to save curriculum state: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO lesson_results (lesson_index, score, passed_at)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return errors.NewPersistenceError("save curriculum", fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer stmt.Close()

	for _, r := range state.Results {
		if _, err := stmt.ExecContext(ctx, r.Index, r.Score, formatTime(r.PassedAt)); err != nil {
			return errors.NewPersistenceError("save curriculum", fmt.Errorf("failed to save lesson %d: %w", r.Index, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistenceError("save curriculum", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// GetCurriculum retrieves the mentor state.
func (s *SQLiteStore) GetCurriculum(ctx context.Context) (*models.CurriculumState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		state     models.CurriculumState
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT next_lesson, paper_trades, paper_wins, updated_at FROM curriculum_state WHERE id = 1
	`).Scan(&state.NextLesson, &state.PaperTrades, &state.PaperWins, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("curriculum state: %w", errors.ErrNotFound)
	}
	if err != nil {
		return nil, errors.NewPersistenceError("get curriculum", fmt.Errorf("failed to get curriculum state: %w", err))
	}
	if state.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, errors.NewPersistenceError("get curriculum", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT lesson_index, score, passed_at FROM lesson_results ORDER BY lesson_index ASC`)
	if err != nil {
		return nil, errors.NewPersistenceError("get curriculum", fmt.Errorf("failed to query lesson results: %w", err))
	}
	defer rows.Close()

	state.Results = []models.LessonResult{}
	for rows.Next() {
		var (
			r        models.LessonResult
			passedAt string
		)
		if err := rows.Scan(&r.Index, &r.Score, &passedAt); err != nil {
			return nil, errors.NewPersistenceError("get curriculum", fmt.Errorf("failed to scan lesson result: %w", err))
		}
		if r.PassedAt, err = parseTime(passedAt); err != nil {
			return nil, errors.NewPersistenceError("get curriculum", err)
		}
		state.Results = append(state.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceError("get curriculum", fmt.Errorf("error iterating lesson results: %w", err))
	}
	return &state, nil
}

// ============================================================================
// Helpers
// ============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
