package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"vinylshop/internal/config"
	"vinylshop/internal/db"
	"vinylshop/internal/gateway"
	"vinylshop/internal/httpserver"
	"vinylshop/internal/payments"
	cartrepo "vinylshop/internal/repository/cart"
	orderrepo "vinylshop/internal/repository/order"
	recordrepo "vinylshop/internal/repository/record"
	webhookrepo "vinylshop/internal/repository/webhookevent"
	"vinylshop/internal/scheduler"
	cartsvc "vinylshop/internal/service/cart"
	checkoutsvc "vinylshop/internal/service/checkout"
	settlementsvc "vinylshop/internal/service/settlement"
	catalogsync "vinylshop/internal/sync"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	recordRepo := recordrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	webhookRepo := webhookrepo.NewPostgres(dbpool, logger)

	market := gateway.NewHTTPClient(cfg.MarketBaseURL, cfg.MarketToken, cfg.MarketSeller)
	provider := payments.NewHTTPProvider(cfg.PaymentBaseURL, cfg.PaymentAPIKey)

	cartService := cartsvc.New(dbpool, cartRepo, recordRepo, logger)
	checkoutService := checkoutsvc.New(cartRepo, provider, cfg.Currency, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, logger)
	settlementService := settlementsvc.New(dbpool, recordRepo, orderRepo, cartRepo, webhookRepo, market, &settlementsvc.LogNotifier{Logger: logger}, logger)

	reconciler := catalogsync.New(catalogsync.Config{
		DB:        dbpool,
		Gateway:   market,
		Records:   recordRepo,
		Guard:     catalogsync.NewGuard(orderRepo),
		Logger:    logger,
		PageSize:  cfg.SyncPageSize,
		PageDelay: cfg.SyncPageDelay,
	})

	daily, err := scheduler.NewDaily(cfg.SyncHour, cfg.SyncTimeZone, logger, func(ctx context.Context) {
		if _, err := reconciler.Run(ctx, catalogsync.ModeDelta); err != nil {
			if errors.Is(err, catalogsync.ErrSyncInFlight) {
				logger.Printf("scheduled sync skipped: %v", err)
				return
			}
			logger.Printf("scheduled sync failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("init scheduler: %v", err)
	}
	go daily.Start(ctx)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CartSvc:       cartService,
		CheckoutSvc:   checkoutService,
		SettlementSvc: settlementService,
		WebhookSecret: cfg.WebhookSecret,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
