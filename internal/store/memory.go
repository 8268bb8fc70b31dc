package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trading-gate/internal/errors"
	"trading-gate/internal/models"
)

// MemoryStore implements StateStore in process memory. State does not
// survive a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	days       map[string]*models.DailyPsychologyState
	trades     map[string]*models.TradeRecord
	keys       map[string]string
	curriculum *models.CurriculumState
	closed     bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		days:   make(map[string]*models.DailyPsychologyState),
		trades: make(map[string]*models.TradeRecord),
		keys:   make(map[string]string),
	}
}

func (m *MemoryStore) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewPersistenceError(op, err)
	}
	if m.closed {
		return errors.NewPersistenceError(op, fmt.Errorf("store is closed"))
	}
	return nil
}

// SaveDay upserts a day state.
func (m *MemoryStore) SaveDay(ctx context.Context, day *models.DailyPsychologyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "save day"); err != nil {
		return err
	}
	m.days[day.Date] = day.Clone()
	return nil
}

// GetDay retrieves the state of one calendar day.
func (m *MemoryStore) GetDay(ctx context.Context, date string) (*models.DailyPsychologyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, "get day"); err != nil {
		return nil, err
	}
	day, ok := m.days[date]
	if !ok {
		return nil, fmt.Errorf("day %s: %w", date, errors.ErrNotFound)
	}
	return day.Clone(), nil
}

// CurrentDay retrieves the latest non-archived day.
func (m *MemoryStore) CurrentDay(ctx context.Context) (*models.DailyPsychologyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, "current day"); err != nil {
		return nil, err
	}
	var current *models.DailyPsychologyState
	for _, day := range m.days {
		if day.Archived {
			continue
		}
		if current == nil || day.Date > current.Date {
			current = day
		}
	}
	if current == nil {
		return nil, fmt.Errorf("current day: %w", errors.ErrNotFound)
	}
	return current.Clone(), nil
}

// ListDays retrieves days, newest first.
func (m *MemoryStore) ListDays(ctx context.Context, filter DayFilter) ([]*models.DailyPsychologyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, "list days"); err != nil {
		return nil, err
	}
	var days []*models.DailyPsychologyState
	for _, day := range m.days {
		if filter.ArchivedOnly && !day.Archived {
			continue
		}
		days = append(days, day.Clone())
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date > days[j].Date })
	if filter.Limit > 0 && len(days) > filter.Limit {
		days = days[:filter.Limit]
	}
	return days, nil
}

// SaveTrade upserts a trade record.
func (m *MemoryStore) SaveTrade(ctx context.Context, record *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "save trade"); err != nil {
		return err
	}
	if existing, ok := m.keys[record.LogicalKey]; ok && existing != record.ID {
		return errors.NewPersistenceError("save trade", fmt.Errorf("logical key %s already stored as %s", record.LogicalKey, existing))
	}
	m.trades[record.ID] = record.Clone()
	m.keys[record.LogicalKey] = record.ID
	return nil
}

// GetTrade retrieves a trade record by id.
func (m *MemoryStore) GetTrade(ctx context.Context, id string) (*models.TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, "get trade"); err != nil {
		return nil, err
	}
	record, ok := m.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, errors.ErrNotFound)
	}
	return record.Clone(), nil
}

// ListTrades retrieves trade records in plan order.
func (m *MemoryStore) ListTrades(ctx context.Context, filter TradeFilter) ([]*models.TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, "list trades"); err != nil {
		return nil, err
	}
	var records []*models.TradeRecord
	for _, r := range m.trades {
		if filter.Match(r) {
			records = append(records, r.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].PlannedAt.Equal(records[j].PlannedAt) {
			return records[i].PlannedAt.Before(records[j].PlannedAt)
		}
		return records[i].ID < records[j].ID
	})
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

// SaveCurriculum replaces the mentor state.
func (m *MemoryStore) SaveCurriculum(ctx context.Context, state *models.CurriculumState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "save curriculum"); err != nil {
		return err
	}
	m.curriculum = state.Clone()
	return nil
}

// GetCurriculum retrieves the mentor state.
func (m *MemoryStore) GetCurriculum(ctx context.Context) (*models.CurriculumState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(ctx, "get curriculum"); err != nil {
		return nil, err
	}
	if m.curriculum == nil {
		return nil, fmt.Errorf("curriculum state: %w", errors.ErrNotFound)
	}
	return m.curriculum.Clone(), nil
}

// Close marks the store closed; later calls fail with a PersistenceError.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
