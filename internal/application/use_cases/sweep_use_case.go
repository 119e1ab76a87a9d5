package use_cases

import (
	"context"

	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// SweepResult is the aggregate summary returned to the scheduled trigger.
// Per-item failures are logged server-side only.
type SweepResult struct {
	Processed            int `json:"processed"`
	ExpiredNoBids        int `json:"expiredNoBids"`
	TransactionsCreated  int `json:"transactionsCreated"`
	TransactionsExisting int `json:"transactionsExisting"`
	TotalFound           int `json:"totalFound"`
}

// SweepUseCase scans auctions past their end time and drives each one to a
// terminal state: expired when nobody bid, settled through the settlement
// coordinator otherwise. Racing a manual acceptance is fine; the coordinator
// answers with the existing transaction.
type SweepUseCase struct {
	listingRepo ports.ListingRepository
	settlement  *SettlementUseCase
	clk         clock.Clock
	log         *logger.Logger

	pageSize int
}

func NewSweepUseCase(
	listingRepo ports.ListingRepository,
	settlement *SettlementUseCase,
	clk clock.Clock,
	log *logger.Logger,
	pageSize int,
) *SweepUseCase {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &SweepUseCase{
		listingRepo: listingRepo,
		settlement:  settlement,
		clk:         clk,
		log:         log,
		pageSize:    pageSize,
	}
}

func (uc *SweepUseCase) Run(ctx context.Context) (*SweepResult, error) {
	now := uc.clk.Now()

	ended, err := uc.listingRepo.GetEndedAuctions(ctx, now, uc.pageSize)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{TotalFound: len(ended)}

	for _, item := range ended {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if err := uc.processItem(ctx, item, result); err != nil {
			uc.log.Error("Sweep failed for item", "item_id", item.ID, "error", err)
			continue
		}
		result.Processed++
	}

	expiredOffers, err := uc.listingRepo.ExpireStaleOffers(ctx, now, uc.pageSize)
	if err != nil {
		uc.log.Error("Failed to expire stale offers", "error", err)
	} else if expiredOffers > 0 {
		uc.log.Info("Expired stale offers", "count", expiredOffers)
	}

	uc.log.Info("Sweep finished",
		"total_found", result.TotalFound,
		"processed", result.Processed,
		"expired_no_bids", result.ExpiredNoBids,
		"transactions_created", result.TransactionsCreated,
		"transactions_existing", result.TransactionsExisting,
	)

	return result, nil
}

func (uc *SweepUseCase) processItem(ctx context.Context, item *listing.Item, result *SweepResult) error {
	if !item.HasBids() {
		return uc.expireItem(ctx, item, result)
	}

	highest, err := uc.listingRepo.GetHighestBid(ctx, item.ID)
	if err == domainErrors.ErrNoBids {
		return uc.expireItem(ctx, item, result)
	}
	if err != nil {
		return err
	}

	settled, err := uc.settlement.SettleFromSweep(ctx, item.ID, highest)
	if err != nil {
		return err
	}
	if settled.AlreadySettled {
		result.TransactionsExisting++
	} else {
		result.TransactionsCreated++
	}
	return nil
}

func (uc *SweepUseCase) expireItem(ctx context.Context, item *listing.Item, result *SweepResult) error {
	expired, err := uc.listingRepo.MarkItemExpired(ctx, item.ID)
	if err != nil {
		return err
	}
	if expired {
		_ = item.MarkExpired()
		result.ExpiredNoBids++
	}
	return nil
}
