// Package bidding records freelancer offers against open gigs.
package bidding

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/repository"
	"gigmarket/pkg/apperror"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
	"gigmarket/pkg/rbac"
)

type PlaceBidInput struct {
	Amount       decimal.Decimal `json:"amount"`
	DeliveryDays int             `json:"delivery_days"`
	Proposal     string          `json:"proposal"`
}

func (in PlaceBidInput) validate() error {
	if !in.Amount.IsPositive() {
		return apperror.InvalidArgument("amount must be positive")
	}
	if in.DeliveryDays <= 0 {
		return apperror.InvalidArgument("delivery_days must be positive")
	}
	if strings.TrimSpace(in.Proposal) == "" {
		return apperror.InvalidArgument("proposal is required")
	}
	return nil
}

type Book struct {
	store  repository.Store
	logger *zap.Logger
	newID  func() uuid.UUID
}

func NewBook(store repository.Store, log *zap.Logger) *Book {
	return &Book{store: store, logger: log, newID: uuid.New}
}

// PlaceBid records a bid on an open gig. The gig row is locked for the
// duration, so two concurrent bids from one freelancer cannot both pass the
// duplicate check.
func (b *Book) PlaceBid(ctx context.Context, gigID, freelancerID uuid.UUID, in PlaceBidInput) (*model.Bid, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	bid := &model.Bid{
		ID:           b.newID(),
		GigID:        gigID,
		FreelancerID: freelancerID,
		Amount:       in.Amount.Round(2),
		DeliveryDays: in.DeliveryDays,
		Proposal:     in.Proposal,
		Status:       model.BidPending,
	}

	err := b.store.WithTx(ctx, func(q repository.Queries) error {
		gig, err := q.LockGig(ctx, gigID)
		if err != nil {
			return repository.Translate(err, "gig")
		}
		if gig.Status != model.GigOpen {
			return apperror.InvalidState("gig is not accepting bids")
		}
		if gig.ClientID == freelancerID {
			return apperror.Forbidden("cannot bid on your own gig")
		}

		_, err = q.GetBidByGigAndFreelancer(ctx, gigID, freelancerID)
		switch {
		case err == nil:
			return apperror.Conflict("duplicate bid")
		case !errors.Is(err, repository.ErrNotFound):
			return repository.Translate(err, "bid")
		}

		if err := q.CreateBid(ctx, bid); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Conflict("duplicate bid")
			}
			return repository.Translate(err, "bid")
		}
		return nil
	})
	if err != nil {
		metrics.IncrementOperationError("place_bid", string(apperror.KindOf(err)))
		return nil, err
	}

	metrics.IncrementEngagementEvent("bid_placed")
	logger.WithTrace(ctx, b.logger).Info("Bid placed",
		zap.String("gig_id", gigID.String()),
		zap.String("bid_id", bid.ID.String()),
		zap.String("freelancer_id", freelancerID.String()),
	)
	return bid, nil
}

// ListBids returns every bid on the gig, newest first. Only the owning client
// or an admin may enumerate them.
func (b *Book) ListBids(ctx context.Context, gigID, requesterID uuid.UUID, role string) ([]model.Bid, error) {
	gig, err := b.store.GetGig(ctx, gigID)
	if err != nil {
		return nil, repository.Translate(err, "gig")
	}
	if gig.ClientID != requesterID && role != rbac.RoleAdmin {
		return nil, apperror.Forbidden("only the gig owner can list its bids")
	}

	bids, err := b.store.ListBidsByGig(ctx, gigID)
	if err != nil {
		return nil, repository.Translate(err, "bid")
	}
	return bids, nil
}

// OwnBid returns the freelancer's own bid on the gig.
func (b *Book) OwnBid(ctx context.Context, gigID, freelancerID uuid.UUID) (*model.Bid, error) {
	bid, err := b.store.GetBidByGigAndFreelancer(ctx, gigID, freelancerID)
	if err != nil {
		return nil, repository.Translate(err, "bid")
	}
	return bid, nil
}

// WithdrawBid lets a freelancer pull a pending bid while the gig is open.
func (b *Book) WithdrawBid(ctx context.Context, bidID, freelancerID uuid.UUID) (*model.Bid, error) {
	var withdrawn *model.Bid
	err := b.store.WithTx(ctx, func(q repository.Queries) error {
		bid, err := q.GetBid(ctx, bidID)
		if err != nil {
			return repository.Translate(err, "bid")
		}
		if bid.FreelancerID != freelancerID {
			return apperror.Forbidden("only the bidder can withdraw a bid")
		}
		gig, err := q.LockGig(ctx, bid.GigID)
		if err != nil {
			return repository.Translate(err, "gig")
		}
		if gig.Status != model.GigOpen || bid.Status != model.BidPending {
			return apperror.InvalidState("bid can no longer be withdrawn")
		}
		if err := q.UpdateBidStatus(ctx, bidID, model.BidWithdrawn); err != nil {
			return repository.Translate(err, "bid")
		}
		bid.Status = model.BidWithdrawn
		withdrawn = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncrementEngagementEvent("bid_withdrawn")
	return withdrawn, nil
}
