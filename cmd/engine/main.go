package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fastprodman/lottoengine/internal/api"
	"github.com/fastprodman/lottoengine/internal/gateway"
	"github.com/fastprodman/lottoengine/internal/infra/logging"
	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/internal/infra/redis"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/notify"
	"github.com/fastprodman/lottoengine/internal/seed"
	"github.com/fastprodman/lottoengine/internal/services/allocator"
	"github.com/fastprodman/lottoengine/internal/services/ledger"
	"github.com/fastprodman/lottoengine/internal/services/rounds"
	"github.com/fastprodman/lottoengine/internal/services/scheduler"
	"github.com/fastprodman/lottoengine/internal/services/selector"
	"github.com/fastprodman/lottoengine/internal/services/settlement"
	"github.com/fastprodman/lottoengine/pkg/envconf"
	"github.com/fastprodman/lottoengine/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running engine: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

//nolint:funlen
func run(ctx context.Context) (retErr error) {
	cfg := new(engineConfig)

	err := envconf.LoadWithDotenv(cfg, ".env")
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.Setup(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Domain settings ---
	shares, err := settlement.ParseShares(cfg.Engine.FirstPrizeShare, cfg.Engine.ConsolationShare)
	if err != nil {
		return fmt.Errorf("prize shares: %w", err)
	}

	cadences, err := scheduler.ParseCadences(cfg.Engine.CalendarCadences)
	if err != nil {
		return fmt.Errorf("calendar cadences: %w", err)
	}

	rule := lottery.MatchRule{Digits: cfg.Engine.NumberDigits, MatchPositions: cfg.Engine.MatchPositions}

	err = rule.Validate()
	if err != nil {
		return fmt.Errorf("match rule: %w", err)
	}

	schedCfg := scheduler.Config{
		Tick:        cfg.Engine.SchedulerTick,
		Batch:       cfg.Engine.RoundsPerTickScan,
		Cadences:    cadences,
		TicketPrice: cfg.Engine.CalendarPrice,
		Rule:        rule,
	}

	err = schedCfg.Validate()
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	seeds, err := seed.NewKeyed(cfg.Engine.SeedKey)
	if err != nil {
		return fmt.Errorf("seed source: %w", err)
	}

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add("postgres", func(context.Context) error { return db.Close() })

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}

	if rdb != nil {
		shutdownqueue.Add("redis", func(context.Context) error { return rdb.Close() })
	}

	gw := newGateway(cfg)
	dispatcher := notify.NewDispatcher(cfg.Engine.NotifyQueueSize, newPublisher(rdb, cfg.Redis.EventChannel))
	cache := redis.NewResultCache(rdb, cfg.Engine.ResultCacheTTL)

	// --- Services ---
	alloc := allocator.New(db, gw, allocator.Options{
		GatewayTimeout: cfg.Gateway.Timeout,
		MaxAttempts:    cfg.Engine.PurchaseAttempts,
	})
	admin := rounds.New(db, gw, cache, dispatcher, cfg.Gateway.Timeout)
	sel := selector.New(db, dispatcher)
	settle := settlement.New(db, shares, cache, dispatcher)
	balances := ledger.New(db)

	sched := scheduler.New(db, seeds, sel, settle, admin, dispatcher, schedCfg)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.NewHandler(alloc, admin, balances))

	// Register HTTP server graceful shutdown
	shutdownqueue.Add("http server", func(c context.Context) error {
		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	})

	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })

	// stop the server once the group is canceled so ListenAndServe returns
	g.Go(func() error {
		<-gctx.Done()

		c, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(c)
	})

	slog.Info("engine started", "port", cfg.Port, "cadences", cfg.Engine.CalendarCadences)

	return g.Wait()
}

func newGateway(cfg *engineConfig) gateway.Gateway {
	if cfg.Gateway.BaseURL == "memory" {
		slog.Warn("using in-memory payment gateway, every charge is confirmed")
		return gateway.NewMemory()
	}

	return gateway.NewHTTP(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
}

func newPublisher(rdb *goredis.Client, channel string) notify.Publisher {
	if rdb == nil {
		return notify.NewLogPublisher(slog.Default())
	}

	return notify.NewRedisPublisher(rdb, channel)
}
