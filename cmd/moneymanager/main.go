package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneymanager/internal/amqp"
	"moneymanager/internal/backend"
	"moneymanager/internal/cli"
	"moneymanager/internal/config"
	"moneymanager/internal/export"
	apphttp "moneymanager/internal/http"
	"moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/shell"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Application stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	mirror, err := backend.NewMirror(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Mutations are announced on AMQP when a broker is configured, so the
	// ledger worker mirrors them. Without a broker the mirror runs here.
	var (
		publisher services.EventPublisher
		processor *services.MirrorProcessor
	)
	switch {
	case cfg.AMQPEnabled():
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = client
		logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	case mirror != nil:
		source := services.NewLedgerService(store.Store, nil, logger)
		processor = services.NewMirrorProcessor(source, mirror,
			services.MirrorProcessorConfig{Interval: cfg.SyncInterval}, logger)
		publisher = processor
		logger.Info("Ledger mirror runs in process", "interval", cfg.SyncInterval.String())
	}

	svc := services.NewLedgerService(store.Store, publisher, logger)
	exporter := export.NewExporter(svc, cfg.ExportDir, mirror, logger)
	router := shell.NewRouter(svc, exporter, shell.WithLogger(logger))

	deps := apphttp.Deps{
		Service:  svc,
		Router:   router,
		Exporter: exporter,
		Logger:   logger,
	}
	if processor != nil {
		deps.Mirror = processor
	}
	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		return err
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting moneymanager server",
			"port", cfg.Port,
			"backend", bcfg.Type.String(),
			"export_dir", cfg.ExportDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if processor != nil {
		g.Go(func() error { return processor.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
