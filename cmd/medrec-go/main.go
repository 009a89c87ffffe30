// Package main is the entrypoint for the medrec-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openmedrec/medrec-go/internal/config"
	"github.com/openmedrec/medrec-go/internal/identity"
	"github.com/openmedrec/medrec-go/internal/server"
	"github.com/openmedrec/medrec-go/internal/sharing"
	"github.com/openmedrec/medrec-go/internal/store"

	// Register store drivers
	_ "github.com/openmedrec/medrec-go/internal/store/json"
	_ "github.com/openmedrec/medrec-go/internal/store/memory"
	_ "github.com/openmedrec/medrec-go/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory, json or sqlite (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the json and sqlite drivers (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:   listenAddr,
			StoreDriver:  storeDriver,
			DataDir:      dataDir,
			LoggingLevel: loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("effective configuration", "config", cfg.Redacted())

	// Open the persistence driver
	if cfg.Store.Driver == "sqlite" {
		if err := os.MkdirAll(cfg.Store.DataDir, 0700); err != nil {
			logger.Error("failed to create data directory", "path", cfg.Store.DataDir, "error", err)
			os.Exit(1)
		}
	}
	driver, err := store.New(&cfg.Store)
	if err != nil {
		logger.Error("failed to create store driver", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := driver.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer driver.Close()

	// Trust and access core
	creds := identity.NewCredentialStore(cfg.Auth.BcryptCost)
	lockout := identity.NewLockoutPolicy(driver, cfg.Auth.MaxFailedAttempts, cfg.Auth.LockDuration())
	authenticator := identity.NewPasswordAuthenticator(driver, creds, lockout, logger)
	tokens := identity.NewAccessTokenManager(driver, cfg.Auth.MaxActiveTokens, logger)
	accounts := identity.NewAccountService(driver, creds, tokens, logger)
	registry := sharing.NewRegistry(driver, driver, logger)
	resolver := sharing.NewResolver(driver)

	deps := &server.Deps{
		Driver:        driver,
		Authenticator: authenticator,
		Tokens:        tokens,
		Accounts:      accounts,
		Registry:      registry,
		Resolver:      resolver,
	}

	srv, err := server.New(cfg, logger, deps)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
