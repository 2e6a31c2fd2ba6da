package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/heimdex/heimdex-exporter/internal/api"
	"github.com/heimdex/heimdex-exporter/internal/config"
	"github.com/heimdex/heimdex-exporter/internal/db"
	"github.com/heimdex/heimdex-exporter/internal/download"
	"github.com/heimdex/heimdex-exporter/internal/export"
	"github.com/heimdex/heimdex-exporter/internal/exportapi"
	"github.com/heimdex/heimdex-exporter/internal/logging"
	"github.com/heimdex/heimdex-exporter/internal/notify"
	"github.com/heimdex/heimdex-exporter/internal/session"
	"github.com/heimdex/heimdex-exporter/internal/ui"
	"github.com/heimdex/heimdex-exporter/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.DownloadDir(), 0755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	if logFile := cfg.LogFile(); logFile != "" {
		var closer io.Closer
		logger, closer = logging.NewRotatingLogger(cfg.LogLevel(), logging.DefaultRotation(logFile))
		defer closer.Close()
	}
	logger.Info("starting heimdex exporter",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                 HEIMDEX EXPORTER v%-23s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Backend:    %-45s ║\n", cfg.ExportBaseURL())
	fmt.Printf("║  Downloads:  %-45s ║\n", logging.SanitizePath(cfg.DownloadDir()))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	notifier := newNotifier(cfg.Headless(), logger)

	control := export.NewControl(export.ControlConfig{
		Sessions: session.NewStoreProvider(repo),
		Exporter: exportapi.NewHTTPClient(exportapi.ClientConfig{
			BaseURL:  cfg.ExportBaseURL(),
			Timeout:  cfg.ExportTimeout(),
			MaxBytes: cfg.ExportMaxBytes(),
			Logger:   logger,
		}),
		Saver:    download.NewFileSaver(cfg.DownloadDir(), logger),
		Notifier: notifier,
		History:  repo,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionWatcher := watcher.NewSessionFileWatcher(cfg.SessionFile(), logger)
	sessionWatcher.OnChange(func(id string) {
		var err error
		if id == "" {
			err = repo.ClearActiveSession(ctx)
		} else {
			err = repo.SetActiveSession(ctx, id, session.SourceFile)
		}
		if err != nil {
			logger.Error("failed to store active session", "session_id", id, "error", err)
		}
	})
	go func() {
		if err := sessionWatcher.Watch(ctx); err != nil {
			logger.Error("session watcher stopped", "error", err)
		}
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Port:        cfg.Port(),
		Control:     control,
		Repository:  repo,
		Database:    database,
		DownloadDir: cfg.DownloadDir(),
		Logger:      logger,
		StartTime:   startTime,
		Version:     config.Version,
		DeviceID:    deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ctx, ui.TrayConfig{
			Control:  control,
			Sessions: session.NewStoreProvider(repo),
			Logger:   logger,
			OnQuit:   quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()
	if tray != nil {
		tray.Quit()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newNotifier always logs; desktop alerts are added when a user session is
// attached.
func newNotifier(headless bool, logger *slog.Logger) export.Notifier {
	if headless {
		return notify.NewLogNotifier(logger)
	}
	return notify.Multi{
		notify.NewLogNotifier(logger),
		notify.NewDesktopNotifier(logger),
	}
}

func ensureDeviceID(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	deviceID := session.NewID()
	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
