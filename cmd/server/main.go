// Package main initializes and starts the GophMaps development portal,
// setting up configuration, logging, database connections, repositories,
// services, handlers, and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/config"
	"github.com/atinyakov/GophMaps/internal/db"
	"github.com/atinyakov/GophMaps/internal/logger"
	"github.com/atinyakov/GophMaps/internal/repository"
	"github.com/atinyakov/GophMaps/internal/server/handler/http"
	"github.com/atinyakov/GophMaps/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, options *config.Options, zapLogger *zap.Logger) error {
	conn, err := db.Open(options.Driver, options.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("cannot init database: %w", err)
	}
	defer conn.Close()

	db.StartSoftDeleteCleaner(ctx, conn, options.CleanupInterval, options.Retention, zapLogger)

	secret := []byte(options.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate token secret: %w", err)
		}
		zapLogger.Warn("no jwt secret configured, tokens will not survive a restart")
	}

	// Initialize repositories, services and handlers.
	userRepo := repository.NewUserRepository(conn)
	itemRepo := repository.NewItemRepository(conn)

	authService := service.NewAuthService(userRepo, service.AuthConfig{
		Secret:   secret,
		TokenTTL: options.TokenTTL,
		Issuer:   options.Issuer,
		Clients:  options.OAuthClients,
	})
	itemService := service.NewItemService(itemRepo)

	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	itemHandler := &http.ItemHandler{ItemService: itemService, Log: zapLogger}

	router := http.NewRouter(authHandler, itemHandler, authService, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := options.TLSCert != ""
	if useTLS {
		// Load server TLS certificate and key.
		cert, err := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load server TLS cert/key: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)
	go func() {
		scheme := "http"
		if useTLS {
			scheme = "https"
		}
		zapLogger.Info("starting portal",
			zap.String("addr", options.Port),
			zap.String("api", scheme+"://"+options.Port+http.RootPath),
			zap.String("driver", options.Driver),
		)
		if useTLS {
			errCh <- server.ListenAndServeTLS("", "")
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
