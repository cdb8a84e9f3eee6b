// web serves the application: the session gate, the identity-provider login
// flow, and the nested route loader tree backed by the graph service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"warikan/internal/auth"
	"warikan/internal/auth/cookie"
	"warikan/internal/auth/provider"
	"warikan/internal/auth/session"
	"warikan/internal/graph/client"
	"warikan/internal/platform/config"
	"warikan/internal/platform/httpserver"
	"warikan/internal/platform/logger"
	"warikan/internal/platform/metrics"
	"warikan/internal/platform/redis"
	"warikan/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logger.New(slog.LevelInfo)

	cfg, err := config.LoadWeb()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := cookie.NewCodec(cfg.SessionKey)
	if err != nil {
		log.Error("session key invalid", "error", err)
		os.Exit(1)
	}

	var sessions session.Store
	if cfg.RedisURL != "" {
		rdb, err := redis.New(cfg.RedisURL)
		if err != nil {
			log.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb.Client)
		log.Info("using redis session store")
	} else {
		sessions = session.NewMemoryStore()
		log.Info("using in-memory session store")
	}

	strategy := provider.NewOIDC(cfg.Provider)
	authenticator := auth.NewAuthenticator(sessions, codec, strategy, cfg.SessionTTL, log)

	m := metrics.New()
	gateways := func(token string) client.Gateway {
		return client.New(cfg.GraphURL, token,
			client.WithTimeout(cfg.GatewayTimeout),
			client.WithMetrics(m),
		)
	}
	h := web.NewHandler(authenticator, gateways, log, m)

	appSrv := httpserver.New(cfg.Addr, h.Router())
	metricsSrv := httpserver.New(cfg.MetricsAddr, m.Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("web server listening", "addr", cfg.Addr)
		return httpserver.Run(ctx, appSrv, shutdownTimeout)
	})
	g.Go(func() error {
		return httpserver.Run(ctx, metricsSrv, shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
