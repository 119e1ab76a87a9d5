package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gavelworks/auction-settlement-service/internal/application/use_cases"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/response"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// SweepHandler is the manual trigger for the expiration sweep, guarded by a
// shared secret so only the scheduler's operator can fire it.
type SweepHandler struct {
	sweep  *use_cases.SweepUseCase
	secret string
	log    *logger.Logger
}

func NewSweepHandler(sweep *use_cases.SweepUseCase, secret string, log *logger.Logger) *SweepHandler {
	return &SweepHandler{sweep: sweep, secret: secret, log: log}
}

func (h *SweepHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get("X-Sweep-Secret")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		response.WriteDomainError(w, domainErrors.ErrSweepForbidden)
		return
	}

	monitoring.SweepRunsTotal.Inc()
	result, err := h.sweep.Run(r.Context())
	if err != nil {
		h.log.Error("Manual sweep failed", "error", err)
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, result)
}
