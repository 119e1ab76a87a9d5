package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/response"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

type HealthHandler struct {
	db    *sql.DB
	redis *redis.Client
	log   *logger.Logger
}

func NewHealthHandler(db *sql.DB, redisClient *redis.Client, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, log: log}
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func (h *HealthHandler) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := healthStatus{Status: "ok", Database: "ok", Redis: "ok"}
		code := http.StatusOK

		if err := h.db.PingContext(ctx); err != nil {
			h.log.Error("Health check database ping failed", "error", err)
			status.Status = "degraded"
			status.Database = "down"
			code = http.StatusServiceUnavailable
		}

		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.log.Error("Health check redis ping failed", "error", err)
			status.Status = "degraded"
			status.Redis = "down"
			code = http.StatusServiceUnavailable
		}

		response.WriteJSON(w, code, status)
	}
}
