package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gavelworks/auction-settlement-service/internal/application/use_cases"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/response"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

type TransactionHandler struct {
	escrow *use_cases.EscrowUseCase
	log    *logger.Logger
}

func NewTransactionHandler(escrowUC *use_cases.EscrowUseCase, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{escrow: escrowUC, log: log}
}

func (h *TransactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)
	transactions, err := h.escrow.ListForUser(r.Context(), identity, limit, offset)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	views := make([]transactionView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, toTransactionView(t))
	}
	response.WriteSuccess(w, views)
}

func (h *TransactionHandler) HandleGet(w http.ResponseWriter, r *http.Request, transactionID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	transaction, err := h.escrow.Get(r.Context(), identity, transactionID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, toTransactionView(transaction))
}

func (h *TransactionHandler) HandlePay(w http.ResponseWriter, r *http.Request, transactionID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	transaction, err := h.escrow.Pay(r.Context(), identity, transactionID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordEscrowTransition(string(transaction.LifecycleStatus))
	response.WriteSuccess(w, toTransactionView(transaction))
}

// HandleCheckout opens a hosted checkout session for the transaction. The
// processor's completion webhook moves the payment to held.
func (h *TransactionHandler) HandleCheckout(w http.ResponseWriter, r *http.Request, transactionID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	transaction, err := h.escrow.BeginCheckout(r.Context(), identity, transactionID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, map[string]string{
		"transaction_id":      transaction.ID,
		"checkout_session_id": transaction.CheckoutSessionID,
	})
}

type shipRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

func (h *TransactionHandler) HandleShip(w http.ResponseWriter, r *http.Request, transactionID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req shipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteValidationError(w, "Invalid request body", nil)
		return
	}
	if req.TrackingNumber == "" {
		response.WriteValidationError(w, "Validation failed", map[string]string{"tracking_number": "tracking_number is required"})
		return
	}

	transaction, err := h.escrow.Ship(r.Context(), identity, transactionID, req.TrackingNumber)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordEscrowTransition(string(transaction.LifecycleStatus))
	response.WriteSuccess(w, toTransactionView(transaction))
}

func (h *TransactionHandler) HandleDeliver(w http.ResponseWriter, r *http.Request, transactionID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	transaction, err := h.escrow.Deliver(r.Context(), identity, transactionID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordEscrowTransition(string(transaction.LifecycleStatus))
	response.WriteSuccess(w, toTransactionView(transaction))
}

func (h *TransactionHandler) HandleConfirmDelivery(w http.ResponseWriter, r *http.Request, transactionID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	transaction, err := h.escrow.ConfirmDelivery(r.Context(), identity, transactionID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordEscrowTransition(string(transaction.LifecycleStatus))
	h.log.Info("Escrow completed", "transaction_id", transaction.ID)
	response.WriteSuccess(w, toTransactionView(transaction))
}

func (h *TransactionHandler) HandleCancel(w http.ResponseWriter, r *http.Request, transactionID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.escrow.Cancel(r.Context(), identity, transactionID); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordEscrowTransition(string(escrow.LifecycleCancelled))
	response.WriteSuccess(w, map[string]string{"transaction_id": transactionID, "status": "cancelled"})
}

func (h *TransactionHandler) HandleDispute(w http.ResponseWriter, r *http.Request, transactionID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	transaction, err := h.escrow.Dispute(r.Context(), identity, transactionID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordEscrowTransition(string(transaction.LifecycleStatus))
	response.WriteSuccess(w, toTransactionView(transaction))
}
