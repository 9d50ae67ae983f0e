// Package engagement runs the gig and project state machines: publishing
// gigs, awarding a bid, and carrying the resulting project to a terminal
// state.
package engagement

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gigmarket/internal/repository"
	"gigmarket/pkg/config"
)

type Lifecycle struct {
	store    repository.Store
	currency string
	logger   *zap.Logger
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewLifecycle(store repository.Store, cfg config.MarketConfig, log *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		currency: cfg.Currency,
		logger:   log,
		now:      time.Now,
		newID:    uuid.New,
	}
}

func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}
