package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepResets(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 3, s.err
}

type countingReplayer struct {
	limit atomic.Int32
}

func (r *countingReplayer) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	r.limit.Store(int32(limit))
	return 1, nil
}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(&countingSweeper{}, &countingReplayer{}, time.UTC, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s, err = New(&countingSweeper{}, nil, time.UTC, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())
}

func TestSweepSpecFiresOnFirstOfMonth(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	sched, err := cron.ParseStandard(SweepSpec)
	require.NoError(t, err)

	next := sched.Next(time.Date(2026, 1, 31, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, loc), next)

	next = sched.Next(time.Date(2026, 2, 1, 0, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, loc), next)
}

func TestJobs(t *testing.T) {
	sweeper := &countingSweeper{}
	replayer := &countingReplayer{}
	s, err := New(sweeper, replayer, time.UTC, zap.NewNop())
	require.NoError(t, err)

	s.SweepQuotas()
	s.ReplayFailed()
	assert.Equal(t, int32(1), sweeper.calls.Load())
	assert.Equal(t, int32(replayBatch), replayer.limit.Load())

	// a failing sweep is logged, not fatal
	sweeper.err = errors.New("db down")
	s.SweepQuotas()
	assert.Equal(t, int32(2), sweeper.calls.Load())
}

func TestStartStop(t *testing.T) {
	s, err := New(&countingSweeper{}, nil, time.UTC, zap.NewNop())
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
