package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gavelworks/auction-settlement-service/internal/application/use_cases"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/response"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// WebhookHandler receives payment processor callbacks. Events it does not
// recognize are acknowledged and dropped so the processor stops retrying
// them.
type WebhookHandler struct {
	escrow *use_cases.EscrowUseCase
	log    *logger.Logger
}

func NewWebhookHandler(escrowUC *use_cases.EscrowUseCase, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{escrow: escrowUC, log: log}
}

type webhookEvent struct {
	Type            string `json:"type"`
	TransactionID   string `json:"transaction_id"`
	SessionID       string `json:"session_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Reason          string `json:"reason"`
}

func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		response.WriteValidationError(w, "Invalid webhook payload", nil)
		return
	}
	if event.TransactionID == "" {
		response.WriteValidationError(w, "Validation failed", map[string]string{"transaction_id": "transaction_id is required"})
		return
	}

	h.log.Info("Payment webhook received", "type", event.Type, "transaction_id", event.TransactionID)

	var err error
	switch event.Type {
	case "checkout.session.completed":
		err = h.escrow.ApplyCheckoutCompleted(r.Context(), event.TransactionID, event.SessionID, event.PaymentIntentID)
	case "payment_intent.payment_failed":
		err = h.escrow.ApplyPaymentFailed(r.Context(), event.TransactionID, event.Reason)
	default:
		h.log.Warn("Ignoring unhandled webhook type", "type", event.Type)
		response.WriteSuccess(w, map[string]string{"status": "ignored"})
		return
	}

	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, map[string]string{"status": "processed"})
}
