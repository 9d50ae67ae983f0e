// Package memstore is an in-memory repository.Store. Transactions are
// serialised on one mutex and roll back to a snapshot on error, which gives
// the same isolation the row locks give in PostgreSQL.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
)

// Event is an outbox row captured by the store.
type Event struct {
	AggregateType string
	AggregateID   uuid.UUID
	RoutingKey    string
	Payload       json.RawMessage
}

type capture struct {
	projectID uuid.UUID
	amount    decimal.Decimal
}

type state struct {
	accounts   map[uuid.UUID]model.Account
	gigs       map[uuid.UUID]model.Gig
	bids       map[uuid.UUID]model.Bid
	projects   map[uuid.UUID]model.Project
	milestones map[uuid.UUID]model.Milestone
	captures   map[string]capture
	cancelled  map[string]time.Time
	events     []Event
	seq        int64
}

func newState() *state {
	return &state{
		accounts:   map[uuid.UUID]model.Account{},
		gigs:       map[uuid.UUID]model.Gig{},
		bids:       map[uuid.UUID]model.Bid{},
		projects:   map[uuid.UUID]model.Project{},
		milestones: map[uuid.UUID]model.Milestone{},
		captures:   map[string]capture{},
		cancelled:  map[string]time.Time{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.gigs {
		c.gigs[k] = v
	}
	for k, v := range s.bids {
		c.bids[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.milestones {
		c.milestones[k] = v
	}
	for k, v := range s.captures {
		c.captures[k] = v
	}
	for k, v := range s.cancelled {
		c.cancelled[k] = v
	}
	c.events = append([]Event(nil), s.events...)
	c.seq = s.seq
	return c
}

// Store implements repository.Store.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
	*queries
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	s := &Store{st: newState(), now: time.Now}
	s.queries = &queries{s: s}
	return s
}

// WithClock makes stored timestamps follow now.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&queries{s: s, inTx: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Events returns the outbox rows committed so far.
func (s *Store) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.st.events...)
}

// queries runs against the shared state. Outside a transaction every call
// takes the store mutex itself.
type queries struct {
	s    *Store
	inTx bool
}

func (q *queries) guard() func() {
	if q.inTx {
		return func() {}
	}
	q.s.mu.Lock()
	return q.s.mu.Unlock
}

// tick returns a strictly increasing timestamp so creation order is total.
func (q *queries) tick() time.Time {
	q.s.st.seq++
	return q.s.now().Add(time.Duration(q.s.st.seq) * time.Nanosecond)
}

func (q *queries) EnqueueEvent(ctx context.Context, aggregateType string, aggregateID uuid.UUID, routingKey string, payload any) error {
	defer q.guard()()
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.s.st.events = append(q.s.st.events, Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       body,
	})
	return nil
}

// LockSubscription is a no-op: transactions already run one at a time.
func (q *queries) LockSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}

func (q *queries) MarkSubscriptionCancelled(ctx context.Context, subscriptionID string, at time.Time) error {
	defer q.guard()()
	if _, ok := q.s.st.cancelled[subscriptionID]; !ok {
		q.s.st.cancelled[subscriptionID] = at
	}
	return nil
}

func (q *queries) IsSubscriptionCancelled(ctx context.Context, subscriptionID string) (bool, error) {
	defer q.guard()()
	_, ok := q.s.st.cancelled[subscriptionID]
	return ok, nil
}

func sortByCreatedDesc[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
}
