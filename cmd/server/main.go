package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teahaven/internal/config"
	"teahaven/internal/infra"
	"teahaven/internal/repository"
	"teahaven/internal/router"
	"teahaven/internal/service"
	"teahaven/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers are wired here (composition root) so the pool and
	// the sweeper have full access to all infrastructure dependencies.
	paymentCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	paymentClient := infra.NewPaymentClient(cfg.PaymentProviderURL, paymentCB)
	dispatcher := worker.NewDispatcher(rdb)
	auditRepo := repository.NewAuditRepository(db)

	workerHandlers := &worker.WorkerHandlers{
		Audit: worker.NewAuditWorker(auditRepo),
	}
	worker.StartWorkerPool(ctx, rdb, workerHandlers, cfg.WorkerPoolSize)

	// The stale-order sweeper needs its own order-service wiring: it cancels
	// through the same code path the API uses so reservations are released
	// and ledgered identically.
	productRepo := repository.NewProductRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	cartRepo := repository.NewCartRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	stockSvc := service.NewStockService(productRepo, ledgerRepo, dispatcher, cfg.LockTimeout)
	orderSvc := service.NewOrderService(orderRepo, cartRepo, addressRepo, stockSvc,
		service.NewShippingCalculator(), paymentClient, dispatcher, cfg.LockTimeout)

	worker.StartExpiryCron(ctx, worker.ExpiryCronConfig{
		OrderRepo:       orderRepo,
		Orders:          orderSvc,
		PendingOrderTTL: cfg.PendingOrderTTL,
	})

	r := router.New(cfg, db, rdb, paymentCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("teahaven backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
