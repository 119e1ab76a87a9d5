package handlers

import (
	"net/http"

	"github.com/gavelworks/auction-settlement-service/internal/application/commands"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/response"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

type OfferHandler struct {
	offers *commands.OfferHandler
	log    *logger.Logger
}

func NewOfferHandler(offers *commands.OfferHandler, log *logger.Logger) *OfferHandler {
	return &OfferHandler{offers: offers, log: log}
}

// HandleAccept turns the offer into the item's transaction. Calling it again
// after a concurrent settlement answers with the existing transaction.
func (h *OfferHandler) HandleAccept(w http.ResponseWriter, r *http.Request, offerID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.offers.Accept(r.Context(), identity, offerID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordSettlement(result.AlreadySettled)
	if result.AlreadySettled {
		response.WriteSuccess(w, toTransactionView(result.Transaction))
		return
	}
	response.WriteCreated(w, toTransactionView(result.Transaction))
}

func (h *OfferHandler) HandleReject(w http.ResponseWriter, r *http.Request, offerID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.offers.Reject(r.Context(), identity, offerID); err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, map[string]string{"offer_id": offerID, "status": "rejected"})
}
