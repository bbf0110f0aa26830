package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wfunc/partyserver/config"
	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/persistence"
	"github.com/wfunc/partyserver/server"
	"github.com/wfunc/partyserver/store"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "partyserver",
		Short: "Real-time party game server (acting, trivia, cards)",
		RunE: func(*cobra.Command, []string) error {
			return run(configPath)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&configPath, "config", ".", "directory holding config.yaml")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	deps := server.Deps{}

	// Initialize Database
	if cfg.Database.Enabled {
		db, err := openDatabase(cfg.Database)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		logger.Log.Infow("Database connection successful.", "driver", cfg.Database.Driver)
		deps.DB = db
	}

	if cfg.Redis.Enabled {
		client, err := store.Open(store.Config{
			URL:         cfg.Redis.URL,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			logger.Log.Fatalf("Failed to connect to redis: %v", err)
		}
		logger.Log.Info("Redis connection successful.")
		deps.Redis = client
	}

	// Initialize Game Server
	gameServer, err := server.NewGameServer(cfg, deps)
	if err != nil {
		return err
	}

	go func() {
		if err := gameServer.Start(); err != nil {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Shutdown: %v", err)
		return err
	}
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (persistence.Database, error) {
	pg := cfg.Postgres
	if cfg.Driver == "pq" {
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
}
