// graphd serves the fixed graph operation catalogue over HTTP: bearer-gated
// queries and mutations against the group/payment store, with an audit outbox
// drained to Kafka in the background.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"warikan/internal/audit"
	"warikan/internal/auth/token"
	"warikan/internal/graph/handler"
	"warikan/internal/graph/service"
	"warikan/internal/graph/store"
	"warikan/internal/graph/store/memory"
	"warikan/internal/graph/store/postgres"
	"warikan/internal/platform/config"
	"warikan/internal/platform/httpserver"
	"warikan/internal/platform/logger"
	"warikan/internal/platform/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logger.New(slog.LevelInfo)

	cfg, err := config.LoadGraph()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var entityStore store.Store
	var auditStore audit.Store
	if cfg.PostgresURL != "" {
		pg, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		entityStore = pg

		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("open audit database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		outbox := audit.NewPostgresStore(db)
		if err := outbox.EnsureSchema(ctx); err != nil {
			log.Error("ensure audit schema", "error", err)
			os.Exit(1)
		}
		auditStore = outbox
		log.Info("using postgres store")
	} else {
		entityStore = memory.New()
		auditStore = audit.NewMemoryStore()
		log.Info("using in-memory store")
	}

	m := metrics.New()

	var worker *audit.Worker
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := audit.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		worker = audit.NewWorker(auditStore, publisher, log, m, cfg.AuditInterval)
	}

	tokens := token.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	svc := service.New(entityStore, auditStore, log, cfg.DeletePolicy)
	h := handler.New(svc, log, m, tokens)

	apiSrv := httpserver.New(cfg.Addr, h.Router())
	metricsSrv := httpserver.New(cfg.MetricsAddr, m.Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("graph service listening", "addr", cfg.Addr)
		return httpserver.Run(ctx, apiSrv, shutdownTimeout)
	})
	g.Go(func() error {
		return httpserver.Run(ctx, metricsSrv, shutdownTimeout)
	})
	if worker != nil {
		g.Go(func() error {
			return worker.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
