package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	html "github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"shopfront/internal/config"
	"shopfront/internal/http/handlers"
	"shopfront/internal/locks"
	applog "shopfront/internal/log"
	"shopfront/internal/metrics"
	"shopfront/internal/payments"
	"shopfront/internal/repos"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	// Optional file logging
	var sink io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, ferr := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "[warn] could not open log file %s: %v\n", cfg.LogFile, ferr)
		} else {
			sink = io.MultiWriter(os.Stdout, f)
			closers = append(closers, f)
		}
	}
	applog.Configure(sink, cfg.LogLevel, cfg.LogFormat)
	logger := applog.Background("startup")

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	closers = append(closers, db)

	proc, err := payments.NewStripeProcessor(cfg.Stripe)
	if err != nil {
		return fmt.Errorf("payment processor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lk locks.Locker
	if cfg.Redis.URL != "" {
		rc, rerr := locks.Dial(ctx, cfg.Redis.URL)
		if rerr != nil {
			return rerr
		}
		closers = append(closers, rc)
		if lk, err = locks.NewRedisLocker(rc, "shopfront:lock:", cfg.Redis.LockTTL); err != nil {
			return err
		}
		logger.Info().Msg("using redis locks")
	} else {
		lk = locks.NewLocalLocker(cfg.Redis.LockTTL)
		logger.Warn().Msg("no redis configured, locks are process-local")
	}

	var gatherer prometheus.Gatherer
	var shopMetrics *metrics.Shop
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		shopMetrics = metrics.NewShop(reg)
		gatherer = reg
	}

	deps := handlers.NewDeps(db, cfg, proc, lk, shopMetrics)

	engine := html.New("./web/templates", ".html")
	app := handlers.NewApp(deps, handlers.AppOptions{
		Views:     engine,
		Gatherer:  gatherer,
		AccessLog: true,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr()).Str("stripe_env", proc.Environment()).Msg("listening")
		if lerr := app.Listen(cfg.Addr()); lerr != nil && !errors.Is(lerr, context.Canceled) {
			return lerr
		}
		return nil
	})
	g.Go(func() error {
		return deps.Publisher.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if werr := g.Wait(); werr != nil {
		return werr
	}
	logger.Info().Msg("shut down cleanly")
	return nil
}
