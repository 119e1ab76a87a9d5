package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/response"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

type AdminHandler struct {
	settingsRepo ports.SettingsRepository
	log          *logger.Logger
}

func NewAdminHandler(settingsRepo ports.SettingsRepository, log *logger.Logger) *AdminHandler {
	return &AdminHandler{settingsRepo: settingsRepo, log: log}
}

type commissionRatesView struct {
	BuyerRate  string `json:"buyer_rate"`
	SellerRate string `json:"seller_rate"`
}

func (h *AdminHandler) HandleGetCommissionRates(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !identity.IsAdmin() {
		response.WriteDomainError(w, domainErrors.ErrForbidden)
		return
	}

	rates, err := h.settingsRepo.GetCommissionRates(r.Context())
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, commissionRatesView{
		BuyerRate:  rates.BuyerRate.String(),
		SellerRate: rates.SellerRate.String(),
	})
}

func (h *AdminHandler) HandleUpdateCommissionRates(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !identity.IsAdmin() {
		response.WriteDomainError(w, domainErrors.ErrForbidden)
		return
	}

	var req commissionRatesView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteValidationError(w, "Invalid request body", nil)
		return
	}

	buyerRate, err := decimal.NewFromString(req.BuyerRate)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"buyer_rate": "buyer_rate must be a decimal string"})
		return
	}
	sellerRate, err := decimal.NewFromString(req.SellerRate)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"seller_rate": "seller_rate must be a decimal string"})
		return
	}

	one := decimal.NewFromInt(1)
	if buyerRate.LessThan(decimal.Zero) || buyerRate.GreaterThanOrEqual(one) ||
		sellerRate.LessThan(decimal.Zero) || sellerRate.GreaterThanOrEqual(one) {
		response.WriteValidationError(w, "Validation failed", map[string]string{"rates": "rates must be fractions in [0, 1)"})
		return
	}

	rates := escrow.CommissionRates{BuyerRate: buyerRate, SellerRate: sellerRate}
	if err := h.settingsRepo.UpdateCommissionRates(r.Context(), rates); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	h.log.Info("Commission rates updated",
		"buyer_rate", buyerRate.String(),
		"seller_rate", sellerRate.String(),
		"by", identity.ID,
	)
	response.WriteSuccess(w, req)
}
