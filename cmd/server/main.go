package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/use_cases"
	"github.com/gavelworks/auction-settlement-service/internal/config"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/server"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/notification"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/persistence/postgres"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/persistence/redis"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/scheduler"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	flag.Parse()

	log := logger.NewLogger()
	log.Info("Starting Auction Settlement Service")

	cfg, configErr := config.LoadConfig(*configPath)
	if configErr != nil {
		log.Fatal("Failed to load configuration", "error", configErr)
	}

	db, dbErr := postgres.NewConnection(cfg.Database)
	if dbErr != nil {
		log.Fatal("Failed to connect to database", "error", dbErr)
	}
	defer db.Close()

	if migrationErr := postgres.RunMigrations(cfg.Database); migrationErr != nil {
		log.Fatal("Failed to run migrations", "error", migrationErr)
	}

	settingsRepo := postgres.NewSettingsRepository(db)
	if err := seedCommissionRates(settingsRepo, cfg.Commission); err != nil {
		log.Fatal("Failed to seed commission rates", "error", err)
	}

	redisClient, err := redis.NewConnection(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	defer redisClient.Close()

	notifier, err := notification.NewNATSNotifier(cfg.NATS.URL, log)
	if err != nil {
		log.Fatal("Failed to connect to NATS", "error", err)
	}
	defer notifier.Close()

	dbMetricsCollector := monitoring.NewDBMetricsCollector(db.GetDB())
	dbMetricsCollector.StartCollecting(context.Background(), 30*time.Second)

	listingRepo := postgres.NewListingRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	uow := postgres.NewUnitOfWork(db)
	cache := redis.NewCache(redisClient, log)
	idGen := generator.NewIDGenerator()
	clk := clock.NewRealClock()

	settlementUC := use_cases.NewSettlementUseCase(uow, listingRepo, settingsRepo, cache, idGen, clk, log)
	sweepUC := use_cases.NewSweepUseCase(listingRepo, settlementUC, clk, log, cfg.Sweep.PageSize)

	sweepInterval := time.Duration(cfg.Sweep.IntervalSeconds) * time.Second
	sweepScheduler := scheduler.NewSweepScheduler(sweepUC, sweepInterval, log)
	outboxDispatcher := scheduler.NewOutboxDispatcher(outboxRepo, notifier, clk, log)

	httpServer := server.NewServer(cfg, db, redisClient, sweepUC, log)

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	go sweepScheduler.Start(serverCtx)
	go outboxDispatcher.Start(serverCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigChan
		shutdownCtx, cancel := context.WithTimeout(serverCtx, 30*time.Second)
		defer cancel()

		log.Info("Shutting down server...")
		sweepScheduler.Stop()
		outboxDispatcher.Stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", "error", err)
		}

		serverStopCtx()
	}()

	log.Info("Server starting", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server failed", "error", err)
	}

	<-serverCtx.Done()
	log.Info("Server stopped")
}

func seedCommissionRates(repo *postgres.SettingsRepository, cfg config.CommissionConfig) error {
	buyerRate, err := decimal.NewFromString(cfg.BuyerRate)
	if err != nil {
		return fmt.Errorf("invalid buyer_rate %q: %w", cfg.BuyerRate, err)
	}
	sellerRate, err := decimal.NewFromString(cfg.SellerRate)
	if err != nil {
		return fmt.Errorf("invalid seller_rate %q: %w", cfg.SellerRate, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return repo.SeedCommissionRates(ctx, escrow.CommissionRates{
		BuyerRate:  buyerRate,
		SellerRate: sellerRate,
	})
}
