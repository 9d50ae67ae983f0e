// Package scheduler runs the periodic maintenance jobs: the monthly quota
// sweep and the retry of outbox events that ran out of attempts.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// SweepSpec fires at midnight on the first of every month.
	SweepSpec  = "0 0 1 * *"
	ReplaySpec = "@hourly"

	replayBatch = 100
	jobTimeout  = 5 * time.Minute
)

type QuotaSweeper interface {
	SweepResets(ctx context.Context) (int64, error)
}

type OutboxReplayer interface {
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  QuotaSweeper
	replayer OutboxReplayer
	logger   *zap.Logger
}

// New builds a scheduler whose month boundaries follow loc, the same location
// the quota ledger uses.
func New(sweeper QuotaSweeper, replayer OutboxReplayer, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		sweeper:  sweeper,
		replayer: replayer,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(SweepSpec, s.SweepQuotas); err != nil {
		return nil, err
	}
	if replayer != nil {
		if _, err := s.cron.AddFunc(ReplaySpec, s.ReplayFailed); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", s.Entries()))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

func (s *Scheduler) SweepQuotas() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.sweeper.SweepResets(ctx)
	if err != nil {
		s.logger.Error("Quota sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("Quota sweep job done", zap.Int64("reset", n))
}

func (s *Scheduler) ReplayFailed() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.replayer.ReplayFailedEvents(ctx, replayBatch)
	if err != nil {
		s.logger.Error("Outbox replay failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Replayed failed outbox events", zap.Int("count", n))
	}
}
