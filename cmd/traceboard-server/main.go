// traceboard-server is the HTTP API server for the traceboard audit
// ledger. It applies migrations on startup, runs the best-effort audit
// worker alongside the API, and shuts both down gracefully on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/api"
	"github.com/traceboard/traceboard/internal/config"
	"github.com/traceboard/traceboard/internal/db"
	"github.com/traceboard/traceboard/internal/db/migrations"
	"github.com/traceboard/traceboard/internal/dbpool"
	"github.com/traceboard/traceboard/internal/service"
	"github.com/traceboard/traceboard/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		log.WithError(err).Fatal("connecting to database")
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		log.WithError(err).Fatal("applying migrations")
	}

	base := store.Base{Pool: pool, Log: log}
	ledger := store.NewLedgerStore(base)
	ledger.LockTimeout = cfg.AppendLockTimeout
	docs := store.NewDocumentStore(base)

	worker := service.NewAuditWorker(ledger, log, cfg.AuditQueueSize)
	auditSvc := service.NewAuditService(ledger, &base, docs, worker, log)
	docSvc := service.NewDocumentService(docs, &base, auditSvc, log)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:             log,
		Pool:            pool,
		Audit:           auditSvc,
		AuditHealth:     auditSvc,
		Documents:       docSvc,
		PrincipalLookup: &base,
		AuthAuditor:     auditSvc,
		CORSOrigins:     cfg.CORSOrigins,
		Version:         config.Version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"version": config.Version,
		}).Info("server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}

	// Stop the worker after the API: in-flight requests may still enqueue,
	// and Run drains the queue before returning.
	cancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("audit worker did not drain before the shutdown deadline")
	}

	log.Info("server stopped")
}
