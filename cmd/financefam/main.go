package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"financefam/internal/amqp"
	"financefam/internal/backend"
	"financefam/internal/cache"
	"financefam/internal/cli"
	"financefam/internal/config"
	"financefam/internal/core"
	apphttp "financefam/internal/http"
	"financefam/internal/log"
	"financefam/internal/services"
)

const (
	shutdownTimeout    = 30 * time.Second
	cacheSweepInterval = 10 * time.Minute
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, os.Stdout)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("FinanceFam stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}
	store := res.Store

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	sessions := cache.NewLRUCache[core.Session](cfg.SessionMax, cfg.SessionTTL)
	caches := cache.NewManager()
	caches.Register("sessions", sessions)

	v := services.NewValidator()
	audit := services.NewAuditService(store)
	svc := apphttp.Services{
		Ledger:  services.NewLedgerService(store, publisher, v).WithReceiptLimit(cfg.ReceiptMaxBytes),
		Goals:   services.NewGoalService(store, publisher, v),
		Savings: services.NewSavingsService(store, publisher, v),
		Admin:   services.NewAdminService(store, store, audit, v),
		Audit:   audit,
		Auth:    services.NewAuthService(store, store, sessions),
	}

	if _, err := svc.Admin.SeedDefaultAdmin(ctx, cfg.DefaultAdminUsername, cfg.DefaultAdminPassword); err != nil {
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		AdminLoginPerMinute: cfg.AdminLoginPerMinute,
		ReceiptMaxBytes:     cfg.ReceiptMaxBytes,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting FinanceFam server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, cacheSweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
