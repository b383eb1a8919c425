package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tracker-api/internal/config"
	"tracker-api/internal/crud"
	"tracker-api/internal/db"
	"tracker-api/internal/esx"
	"tracker-api/internal/events"
	"tracker-api/internal/httpx"
	"tracker-api/internal/logx"
	"tracker-api/internal/metrics"
	"tracker-api/internal/mqx"
	"tracker-api/internal/redisx"
	"tracker-api/internal/server"
	"tracker-api/internal/store"
	"tracker-api/internal/tracker"
)

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "create or update the schema before serving")
	return cmd
}

func serve(parent context.Context, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, cfgStore, apClose, err := loadConfig()
	defer apClose()
	if err != nil {
		return err
	}

	// registration table fails fast on a malformed resource config
	res, err := tracker.Build()
	if err != nil {
		return err
	}

	drv, closeDB, err := db.Open(cfg)
	if err != nil {
		mainLogger.Sugar().Errorf("open db error: %v", err)
		return err
	}
	defer closeDB()

	if migrate {
		ctx, cancel := context.WithTimeout(parent, 30*time.Second)
		err := db.Migrate(ctx, drv, res.Registry)
		cancel()
		if err != nil {
			mainLogger.Sugar().Errorf("auto migrate error: %v", err)
			return err
		}
	}

	// Optional deps: Redis, MQ, ES
	rdb, redisClose, err := redisx.Open(cfg)
	if err != nil {
		mainLogger.Warn("redis init failed, using in-process rate limit", zap.Error(err))
		rdb = nil
	} else {
		defer redisClose()
	}

	hooks := []crud.Hook{metrics.Hook}
	if cfg.MQ.URL != "" {
		if pub, err := mqx.NewRabbitPublisher(cfg.MQ.URL, cfg.MQ.Exchange); err != nil {
			mainLogger.Warn("mq init failed", zap.Error(err))
		} else {
			defer func() { _ = pub.Close() }()
			hooks = append(hooks, events.NewPublisher(pub))
		}
	}

	esClient, esClose, err := esx.Open(cfg)
	if err != nil {
		mainLogger.Warn("es init failed, search falls back to SQL", zap.Error(err))
		esClient = nil
	} else {
		defer esClose()
		if esClient != nil {
			hooks = append(hooks, events.NewIssueIndexer(esClient, cfg.ES.IssuesIndex))
		}
	}

	app := httpx.NewApp(httpx.Deps{
		Cfg:       cfg,
		Store:     store.New(drv),
		Resources: res,
		Hooks:     hooks,
		Redis:     rdb,
		ES:        esClient,
	})

	watchConfig(cfgStore)

	// Graceful shutdown
	ln, err := server.GetListener(cfg.Server.Addr)
	if err != nil {
		mainLogger.Sugar().Errorf("listener error: %v", err)
		return err
	}
	errc := make(chan error, 1)
	go func() { errc <- app.Listener(ln) }()
	mainLogger.Sugar().Infof("server started on %s", cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errc:
		mainLogger.Sugar().Infof("fiber exit: %v", err)
		return err
	case <-ctx.Done():
	}
	mainLogger.Sugar().Info("shutting down...")
	return app.ShutdownWithTimeout(10 * time.Second)
}

// watchConfig applies dynamic config changes (Apollo) that do not need a
// restart and rejects invalid ones.
func watchConfig(cs *config.Store) {
	cs.AddValidator(func(newCfg *config.Config, changed map[string]bool) error {
		if changed["pg.max_open"] || changed["pg.max_idle"] {
			if newCfg.PG.MaxIdleConns > newCfg.PG.MaxOpenConns {
				return goerr.New("PG_MAX_IDLE cannot exceed PG_MAX_OPEN")
			}
		}
		if changed["ratelimit.max"] && newCfg.RateLimit.Max <= 0 {
			return goerr.New("RATE_LIMIT_MAX must be positive")
		}
		return nil
	})

	cs.Watch(func(newCfg *config.Config, changed map[string]bool) {
		if changed["pg.max_open"] || changed["pg.max_idle"] {
			db.UpdatePool(newCfg.PG.MaxOpenConns, newCfg.PG.MaxIdleConns)
			mainLogger.Info("db pool updated",
				zap.Int("max_open", newCfg.PG.MaxOpenConns),
				zap.Int("max_idle", newCfg.PG.MaxIdleConns),
			)
		}
		for _, key := range []string{"pg.url", "server.addr", "redis.addr", "mq.url", "es.addrs", "ratelimit.max", "ratelimit.window_sec"} {
			if changed[key] {
				mainLogger.Warn("config changed; restart required to take effect", zap.String("key", key))
			}
		}
		if changed["log.level"] || changed["log.format"] {
			logx.Init(newCfg.Log.Level, newCfg.Log.Format)
			mainLogger.Info("logger reconfigured",
				zap.String("level", newCfg.Log.Level),
				zap.String("format", newCfg.Log.Format),
			)
		}
	})
}
