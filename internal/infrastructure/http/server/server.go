package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gavelworks/auction-settlement-service/internal/application/commands"
	"github.com/gavelworks/auction-settlement-service/internal/application/use_cases"
	"github.com/gavelworks/auction-settlement-service/internal/config"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/handlers"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/payments"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/persistence/postgres"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/persistence/redis"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

type Server struct {
	server             *http.Server
	logger             *logger.Logger
	healthHandler      *handlers.HealthHandler
	itemHandler        *handlers.ItemHandler
	offerHandler       *handlers.OfferHandler
	transactionHandler *handlers.TransactionHandler
	webhookHandler     *handlers.WebhookHandler
	sweepHandler       *handlers.SweepHandler
	adminHandler       *handlers.AdminHandler
}

func NewServer(cfg *config.Config, conn *postgres.Connection, redisConn *redis.Connection, sweepUC *use_cases.SweepUseCase, log *logger.Logger) *Server {
	listingRepo := postgres.NewListingRepository(conn)
	transactionRepo := postgres.NewTransactionRepository(conn)
	settingsRepo := postgres.NewSettingsRepository(conn)
	outboxRepo := postgres.NewOutboxRepository(conn)
	uow := postgres.NewUnitOfWork(conn)

	cache := redis.NewCache(redisConn, log)
	gateway := payments.NewGateway(log)

	idGen := generator.NewIDGenerator()
	clk := clock.NewRealClock()

	settlementUC := use_cases.NewSettlementUseCase(uow, listingRepo, settingsRepo, cache, idGen, clk, log)
	escrowUC := use_cases.NewEscrowUseCase(transactionRepo, uow, gateway, outboxRepo, idGen, clk, log)

	bidHandler := commands.NewPlaceBidHandler(uow, listingRepo, cache, idGen, clk, log)
	offerCommands := commands.NewOfferHandler(uow, listingRepo, settlementUC, idGen, clk, log)

	itemHandler := handlers.NewItemHandler(listingRepo, bidHandler, offerCommands, settlementUC, idGen, clk, log)
	offerHandler := handlers.NewOfferHandler(offerCommands, log)
	transactionHandler := handlers.NewTransactionHandler(escrowUC, log)
	webhookHandler := handlers.NewWebhookHandler(escrowUC, log)
	sweepHandler := handlers.NewSweepHandler(sweepUC, cfg.Sweep.Secret, log)
	adminHandler := handlers.NewAdminHandler(settingsRepo, log)
	healthHandler := handlers.NewHealthHandler(conn.GetDB(), redisConn.GetClient(), log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server:             server,
		logger:             log,
		healthHandler:      healthHandler,
		itemHandler:        itemHandler,
		offerHandler:       offerHandler,
		transactionHandler: transactionHandler,
		webhookHandler:     webhookHandler,
		sweepHandler:       sweepHandler,
		adminHandler:       adminHandler,
	}
}

func (s *Server) ListenAndServe() error {
	s.server.Handler = s.setupRoutes()

	s.logger.Info("Starting HTTP server", "address", s.server.Addr)

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
