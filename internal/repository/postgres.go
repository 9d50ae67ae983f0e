package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"gigmarket/pkg/outbox"
)

// DBTX is satisfied by the pool and by an open transaction.
type DBTX = outbox.Querier

// PostgresStore implements Store on a pgx pool. Row locks (SELECT ... FOR
// UPDATE) taken inside WithTx serialise competing writers on the same row.
type PostgresStore struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
	*pgQueries
}

type pgQueries struct {
	*AccountRepository
	*GigRepository
	*BidRepository
	*ProjectRepository
	*MilestoneRepository
	*SubscriptionRepository
	*EventRepository
}

func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	ob := outbox.NewRepository(pool)
	return &PostgresStore{
		pool:      pool,
		outbox:    ob,
		logger:    logger,
		pgQueries: newQueries(pool, ob, logger),
	}
}

func newQueries(db DBTX, ob *outbox.Repository, logger *zap.Logger) *pgQueries {
	return &pgQueries{
		AccountRepository:      NewAccountRepository(db),
		GigRepository:          NewGigRepository(db),
		BidRepository:          NewBidRepository(db),
		ProjectRepository:      NewProjectRepository(db, logger),
		MilestoneRepository:    NewMilestoneRepository(db),
		SubscriptionRepository: NewSubscriptionRepository(db),
		EventRepository:        NewEventRepository(db, ob),
	}
}

// Outbox exposes the outbox table for the dispatcher and replay tooling.
func (s *PostgresStore) Outbox() *outbox.Repository {
	return s.outbox
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(ctx)
	}()

	if err := fn(newQueries(tx, s.outbox, s.logger)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapErr turns driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, db DBTX, query string, args ...any) error {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
