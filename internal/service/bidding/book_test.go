package bidding

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository/memstore"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/rbac"
)

func newBook() (*Book, *memstore.Store) {
	store := memstore.New()
	return NewBook(store, zap.NewNop()), store
}

func seedGig(t *testing.T, store *memstore.Store, status string) *model.Gig {
	t.Helper()
	g := &model.Gig{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Title:    "Logo for a coffee shop",
		Category: "design",
		Status:   status,
	}
	require.NoError(t, store.CreateGig(context.Background(), g))
	return g
}

func offer(amount string, days int) PlaceBidInput {
	return PlaceBidInput{Amount: decimal.RequireFromString(amount), DeliveryDays: days, Proposal: "I can do this"}
}

func TestPlaceBidLinksBidToGig(t *testing.T) {
	ctx := context.Background()
	book, store := newBook()
	gig := seedGig(t, store, model.GigOpen)
	f1, f2 := uuid.New(), uuid.New()

	b1, err := book.PlaceBid(ctx, gig.ID, f1, offer("500", 5))
	require.NoError(t, err)
	assert.Equal(t, model.BidPending, b1.Status)

	b2, err := book.PlaceBid(ctx, gig.ID, f2, offer("600", 3))
	require.NoError(t, err)

	got, err := store.GetGig(ctx, gig.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b1.ID, b2.ID}, got.BidIDs)
}

func TestPlaceBidDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	book, store := newBook()
	gig := seedGig(t, store, model.GigOpen)
	f := uuid.New()

	_, err := book.PlaceBid(ctx, gig.ID, f, offer("500", 5))
	require.NoError(t, err)

	_, err = book.PlaceBid(ctx, gig.ID, f, offer("450", 4))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	got, err := store.GetGig(ctx, gig.ID)
	require.NoError(t, err)
	assert.Len(t, got.BidIDs, 1)
}

func TestPlaceBidOnNonOpenGig(t *testing.T) {
	statuses := []string{
		model.GigDraft, model.GigInProgress, model.GigCompleted, model.GigCancelled, model.GigDisputed,
	}
	for _, status := range statuses {
		t.Run(status, func(t *testing.T) {
			book, store := newBook()
			gig := seedGig(t, store, status)

			_, err := book.PlaceBid(context.Background(), gig.ID, uuid.New(), offer("100", 1))
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindInvalidState))
		})
	}
}

func TestPlaceBidValidation(t *testing.T) {
	ctx := context.Background()
	book, store := newBook()
	gig := seedGig(t, store, model.GigOpen)

	_, err := book.PlaceBid(ctx, uuid.New(), uuid.New(), offer("100", 1))
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = book.PlaceBid(ctx, gig.ID, uuid.New(), offer("0", 1))
	assert.True(t, apperror.Is(err, apperror.KindInvalidArgument))

	_, err = book.PlaceBid(ctx, gig.ID, uuid.New(), offer("10", 0))
	assert.True(t, apperror.Is(err, apperror.KindInvalidArgument))

	_, err = book.PlaceBid(ctx, gig.ID, gig.ClientID, offer("10", 1))
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestConcurrentDuplicateBidsLeaveOne(t *testing.T) {
	ctx := context.Background()
	book, store := newBook()
	gig := seedGig(t, store, model.GigOpen)
	f := uuid.New()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = book.PlaceBid(ctx, gig.ID, f, offer("100", 2))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperror.Is(err, apperror.KindConflict))
	}
	assert.Equal(t, 1, ok)

	bids, err := store.ListBidsByGig(ctx, gig.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestListBids(t *testing.T) {
	ctx := context.Background()
	book, store := newBook()
	gig := seedGig(t, store, model.GigOpen)
	f1, f2 := uuid.New(), uuid.New()

	b1, err := book.PlaceBid(ctx, gig.ID, f1, offer("500", 5))
	require.NoError(t, err)
	b2, err := book.PlaceBid(ctx, gig.ID, f2, offer("600", 3))
	require.NoError(t, err)

	bids, err := book.ListBids(ctx, gig.ID, gig.ClientID, rbac.RoleClient)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, b2.ID, bids[0].ID, "newest first")
	assert.Equal(t, b1.ID, bids[1].ID)

	_, err = book.ListBids(ctx, gig.ID, uuid.New(), rbac.RoleAdmin)
	assert.NoError(t, err)

	_, err = book.ListBids(ctx, gig.ID, f1, rbac.RoleFreelancer)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = book.ListBids(ctx, gig.ID, uuid.New(), rbac.RoleClient)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	own, err := book.OwnBid(ctx, gig.ID, f1)
	require.NoError(t, err)
	assert.Equal(t, b1.ID, own.ID)
}

func TestWithdrawBid(t *testing.T) {
	ctx := context.Background()
	book, store := newBook()
	gig := seedGig(t, store, model.GigOpen)
	f := uuid.New()

	b, err := book.PlaceBid(ctx, gig.ID, f, offer("100", 2))
	require.NoError(t, err)

	_, err = book.WithdrawBid(ctx, b.ID, uuid.New())
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	w, err := book.WithdrawBid(ctx, b.ID, f)
	require.NoError(t, err)
	assert.Equal(t, model.BidWithdrawn, w.Status)

	_, err = book.WithdrawBid(ctx, b.ID, f)
	assert.True(t, apperror.Is(err, apperror.KindInvalidState))
}
