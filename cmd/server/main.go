// Package main is the entry point for the tracker API server
//
//	@title			Tracker API
//	@version		1.0
//	@description	Multi-tenant issue tracker built on a generic resource CRUD framework.
//
//	@BasePath	/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in						header
//	@name					Authorization
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tracker-api/internal/config"
	"tracker-api/internal/logx"

	_ "tracker-api/docs" // swagger docs
)

var mainLogger = logx.GetScope("main")

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		mainLogger.Error("exit", zap.Error(err))
	}
	// stderr may refuse fsync; nothing to do about it on the way out
	_ = logx.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tracker-api",
		Short:         "Multi-tenant issue tracker API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Load .env if present
			_ = godotenv.Load()
		},
	}
	serve := newServeCommand()
	root.AddCommand(serve, newMigrateCommand(), newTokenCommand())
	// bare invocation serves
	root.RunE = serve.RunE
	return root
}

// loadConfig loads config (env first; optional Apollo override) and
// initialises the global logger.
func loadConfig() (*config.Config, *config.Store, func(), error) {
	cfg, store, apClose, err := config.Load()
	if apClose == nil {
		apClose = func() {}
	}
	if err != nil {
		return nil, nil, apClose, err
	}
	logx.Init(cfg.Log.Level, cfg.Log.Format)
	mainLogger.Info("config loaded",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.Server.Addr),
		zap.String("db.driver", cfg.DB.Driver),
		zap.String("log.level", cfg.Log.Level),
		zap.String("log.format", cfg.Log.Format),
	)
	return cfg, store, apClose, nil
}
