package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"vinylshop/internal/config"
	"vinylshop/internal/db"
	"vinylshop/internal/gateway"
	orderrepo "vinylshop/internal/repository/order"
	recordrepo "vinylshop/internal/repository/record"
	catalogsync "vinylshop/internal/sync"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [initial|delta]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := catalogsync.ModeDelta
	switch flag.Arg(0) {
	case "initial":
		mode = catalogsync.ModeInitial
	case "delta", "":
	default:
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[sync] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	reconciler := catalogsync.New(catalogsync.Config{
		DB:        pool,
		Gateway:   gateway.NewHTTPClient(cfg.MarketBaseURL, cfg.MarketToken, cfg.MarketSeller),
		Records:   recordrepo.NewPostgres(pool, logger),
		Guard:     catalogsync.NewGuard(orderrepo.NewPostgres(pool, logger)),
		Logger:    logger,
		PageSize:  cfg.SyncPageSize,
		PageDelay: cfg.SyncPageDelay,
	})

	start := time.Now()
	res, err := reconciler.Run(ctx, mode)
	if err != nil {
		logger.Fatalf("%s sync failed: %v", mode, err)
	}

	fmt.Printf("%s sync done in %s: created=%d updated=%d deleted=%d skipped_guarded=%d mapping_errors=%d pages=%d partial=%t\n",
		mode, time.Since(start).Truncate(time.Millisecond),
		res.Created, res.Updated, res.Deleted, res.SkippedGuarded, res.MappingErrors, res.Pages, res.Partial)
}
