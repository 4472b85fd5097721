// Command playra runs the local media session engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/logger"
	"github.com/mantonx/playra/internal/modules/catalogmodule"
	"github.com/mantonx/playra/internal/modules/modulemanager"
	"github.com/mantonx/playra/internal/modules/progressmodule"
	"github.com/mantonx/playra/internal/modules/sessionmodule"
	"github.com/mantonx/playra/internal/modules/transcodemodule"
	"github.com/mantonx/playra/internal/server"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "playra",
		Short: "Local media session engine",
		Long:  "Playra scans a folder of media, pairs subtitles, remembers where you stopped, and re-encodes what your player cannot decode.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.SetLevelFromString(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewEventBus(events.EventBusConfig{}, logger.New("events"))
	if err := eventBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	transcodeMod := transcodemodule.NewModule(cfg.Transcode, db, eventBus)
	sessionMod := sessionmodule.NewModule(cfg, transcodeMod.LoaderFactory(), eventBus)

	registry := modulemanager.NewRegistry()
	registry.Register(catalogmodule.NewModule(cfg.Catalog, eventBus))
	registry.Register(progressmodule.NewModule(cfg.Progress, eventBus))
	registry.Register(transcodeMod)
	registry.Register(sessionMod)

	if err := registry.LoadAll(db); err != nil {
		return err
	}

	srv := server.New(cfg.Server, registry, eventBus)

	eventBus.PublishAsync(events.Event{
		Type:   events.EventSystemStarted,
		Source: "main",
		Data:   map[string]interface{}{"addr": fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// Close the session first so the latest progress hits disk before the
	// process exits.
	sessionMod.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete: %v", err)
	}

	eventBus.PublishAsync(events.Event{Type: events.EventSystemStopped, Source: "main"})
	if err := eventBus.Stop(shutdownCtx); err != nil {
		logger.Warn("Event bus shutdown incomplete: %v", err)
	}
	return nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Transcode.CacheDBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(cfg.Transcode.CacheDBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
