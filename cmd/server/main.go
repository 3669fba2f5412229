package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digital-concert-hall/internal/clients"
	"digital-concert-hall/internal/config"
	"digital-concert-hall/internal/database"
	"digital-concert-hall/internal/logging"
	"digital-concert-hall/internal/server"
	"digital-concert-hall/internal/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger: ", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	deps := server.Dependencies{
		Sessions: server.NewCookieStore(cfg.Session),
		Orders:   clients.NewHTTPOrderClient(cfg.Upstream.OrderAPIURL, cfg.Upstream.Timeout, logger),
		Payments: clients.NewHTTPPaymentClient(cfg.Upstream.PaymentAPIURL, cfg.Upstream.Timeout, logger),
		Logger:   logger,
	}

	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using in-memory storage; carts are lost on restart")
		deps.Store = storage.NewMemoryStore()
	default:
		db, err := database.NewConnection(database.Config{
			Driver:     cfg.Database.Driver,
			URL:        cfg.Database.URL,
			Host:       cfg.Database.Host,
			Port:       cfg.Database.Port,
			User:       cfg.Database.User,
			Password:   cfg.Database.Password,
			DBName:     cfg.Database.DBName,
			SSLMode:    cfg.Database.SSLMode,
			SQLitePath: cfg.Database.SQLitePath,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := database.NewMigrator(db.DB).WithLogger(logger).RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database ready", zap.String("driver", db.Driver))

		deps.Store = storage.NewSQLStore(db.DB)
		deps.DB = db.DB
	}

	app, err := server.New(cfg, deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     zap.NewStdLog(logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.RateLimiter.Cleanup()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Server.Env),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("payment_gateway", cfg.Payment.Gateway),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	app.Redirector.CancelAll()
	app.Carts.Notifier().Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
