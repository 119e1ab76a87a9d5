package errors

import (
	"errors"
)

var (
	ErrUnauthorized = errors.New("no authenticated identity")
	ErrForbidden    = errors.New("caller is not allowed to perform this action")

	ErrItemNotFound     = errors.New("item not found")
	ErrItemNotActive    = errors.New("item is not active")
	ErrItemNotAuction   = errors.New("item is not sold by auction")
	ErrItemNotQuickSale = errors.New("item is not a quick sale")
	ErrAuctionEnded     = errors.New("auction has already ended")
	ErrBidOnOwnItem     = errors.New("seller cannot bid on own item")
	ErrBidBelowMinimum  = errors.New("bid is below the required minimum increment")
	ErrBidBelowReserve  = errors.New("bid is below the reserve price")
	ErrBidConflict      = errors.New("a concurrent bid was accepted first")
	ErrInvalidAmount    = errors.New("amount must be a positive number")
	ErrBidNotFound      = errors.New("bid not found")
	ErrNoBids           = errors.New("auction has no bids")

	ErrOfferNotFound   = errors.New("offer not found")
	ErrOfferNotPending = errors.New("offer is not pending")
	ErrOfferExpired    = errors.New("offer has expired")
	ErrOfferOnOwnItem  = errors.New("seller cannot make an offer on own item")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("transition not allowed in current state")
	ErrPaymentNotPending   = errors.New("payment has already been authorized")
	ErrPaymentNotHeld      = errors.New("funds are not held for this transaction")

	ErrUpstreamFailure = errors.New("upstream dependency failed")
	ErrSweepForbidden  = errors.New("invalid sweep secret")
)
