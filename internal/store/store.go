// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"
	"time"

	"trading-gate/internal/config"
	"trading-gate/internal/models"
)

// StateStore defines the interface for gate state persistence. Missing
// singleton state is reported with errors.ErrNotFound; every other failure is
// an *errors.PersistenceError.
type StateStore interface {
	// Psychology days
	SaveDay(ctx context.Context, day *models.DailyPsychologyState) error
	GetDay(ctx context.Context, date string) (*models.DailyPsychologyState, error)
	CurrentDay(ctx context.Context) (*models.DailyPsychologyState, error)
	ListDays(ctx context.Context, filter DayFilter) ([]*models.DailyPsychologyState, error)

	// Trade records
	SaveTrade(ctx context.Context, record *models.TradeRecord) error
	GetTrade(ctx context.Context, id string) (*models.TradeRecord, error)
	ListTrades(ctx context.Context, filter TradeFilter) ([]*models.TradeRecord, error)

	// Curriculum
	SaveCurriculum(ctx context.Context, state *models.CurriculumState) error
	GetCurriculum(ctx context.Context) (*models.CurriculumState, error)

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying trade records.
type TradeFilter struct {
	Symbol string
	Status models.TradeStatus
	Paper  *bool
	Since  time.Time // planned at or after
	Limit  int
}

// Match reports whether a record passes the filter, ignoring Limit.
func (f TradeFilter) Match(r *models.TradeRecord) bool {
	if f.Symbol != "" && r.Proposal.Symbol != f.Symbol {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Paper != nil && r.Paper != *f.Paper {
		return false
	}
	if !f.Since.IsZero() && r.PlannedAt.Before(f.Since) {
		return false
	}
	return true
}

// DayFilter represents filters for querying psychology days.
type DayFilter struct {
	ArchivedOnly bool
	Limit        int
}

// Open creates the store named by the storage configuration.
func Open(cfg config.StorageConfig) (StateStore, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
