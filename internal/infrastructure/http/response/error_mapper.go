package response

import (
	"errors"
	"net/http"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

type ErrorMapping struct {
	HTTPStatus int
	Status     Status
	Message    string
}

var errorMappings = map[error]ErrorMapping{
	domainErrors.ErrUnauthorized: {
		HTTPStatus: http.StatusUnauthorized,
		Status:     StatusUnauthorized,
		Message:    "Authentication required",
	},
	domainErrors.ErrForbidden: {
		HTTPStatus: http.StatusForbidden,
		Status:     StatusForbidden,
		Message:    "Not allowed for this account",
	},
	domainErrors.ErrSweepForbidden: {
		HTTPStatus: http.StatusForbidden,
		Status:     StatusForbidden,
		Message:    "Invalid sweep secret",
	},
	domainErrors.ErrItemNotFound: {
		HTTPStatus: http.StatusNotFound,
		Status:     StatusNotFound,
		Message:    "Item not found",
	},
	domainErrors.ErrItemNotActive: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Item is no longer active",
	},
	domainErrors.ErrItemNotAuction: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Item is not an auction",
	},
	domainErrors.ErrItemNotQuickSale: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Item is not a quick sale",
	},
	domainErrors.ErrAuctionEnded: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Auction has ended",
	},
	domainErrors.ErrBidOnOwnItem: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Sellers cannot bid on their own items",
	},
	domainErrors.ErrBidBelowMinimum: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Bid is below the minimum increment",
	},
	domainErrors.ErrBidBelowReserve: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Bid is below the reserve price",
	},
	domainErrors.ErrBidConflict: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Another bid was accepted first, retry with a fresh price",
	},
	domainErrors.ErrInvalidAmount: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusValidationError,
		Message:    "Amount must be a positive value",
	},
	domainErrors.ErrBidNotFound: {
		HTTPStatus: http.StatusNotFound,
		Status:     StatusNotFound,
		Message:    "Bid not found",
	},
	domainErrors.ErrNoBids: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Auction has no bids",
	},
	domainErrors.ErrOfferNotFound: {
		HTTPStatus: http.StatusNotFound,
		Status:     StatusNotFound,
		Message:    "Offer not found",
	},
	domainErrors.ErrOfferNotPending: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Offer is no longer pending",
	},
	domainErrors.ErrOfferExpired: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Offer has expired",
	},
	domainErrors.ErrOfferOnOwnItem: {
		HTTPStatus: http.StatusBadRequest,
		Status:     StatusError,
		Message:    "Sellers cannot make offers on their own items",
	},
	domainErrors.ErrTransactionNotFound: {
		HTTPStatus: http.StatusNotFound,
		Status:     StatusNotFound,
		Message:    "Transaction not found",
	},
	domainErrors.ErrInvalidTransition: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Transaction state does not allow this action",
	},
	domainErrors.ErrPaymentNotPending: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "Payment has already been processed",
	},
	domainErrors.ErrPaymentNotHeld: {
		HTTPStatus: http.StatusConflict,
		Status:     StatusConflict,
		Message:    "No held funds on this transaction",
	},
	domainErrors.ErrUpstreamFailure: {
		HTTPStatus: http.StatusInternalServerError,
		Status:     StatusInternalError,
		Message:    "Upstream dependency failed",
	},
}

func MapDomainError(err error) (int, *ErrorResponse) {
	for domainErr, mapping := range errorMappings {
		if errors.Is(err, domainErr) {
			return mapping.HTTPStatus, Error(mapping.Status, mapping.Message, err.Error())
		}
	}

	return http.StatusInternalServerError, Error(StatusInternalError, "Internal server error", err.Error())
}

func WriteDomainError(w http.ResponseWriter, err error) {
	statusCode, errorResponse := MapDomainError(err)
	WriteJSON(w, statusCode, errorResponse)
}
