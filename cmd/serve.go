package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pepper-assistant/pepper/internal/auth"
	"github.com/pepper-assistant/pepper/internal/config"
	"github.com/pepper-assistant/pepper/internal/identity"
	"github.com/pepper-assistant/pepper/internal/instrumentation"
	"github.com/pepper-assistant/pepper/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		listenAddr  string
		metricsAddr string
		debugMode   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth HTTP server",
		Long: `Start the HTTP server exposing the OAuth login, callback, refresh,
logout, and status endpoints, plus a Prometheus metrics server on a
separate port.

Configuration comes from PEPPER_* environment variables. Flags override
the listen addresses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), listenAddr, metricsAddr, debugMode)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "addr", "", "address for the auth server (overrides PEPPER_LISTEN_ADDR)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the metrics server (overrides PEPPER_METRICS_ADDR)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	return cmd
}

func runServe(ctx context.Context, listenAddr, metricsAddr string, debugMode bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if debugMode {
		cfg.Debug = true
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrProvider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := instrProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", "error", err)
		}
	}()

	provider, err := identity.NewAzureProvider(identity.AzureConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TenantID:     cfg.TenantID,
		RedirectURL:  cfg.RedirectURI,
		HTTPClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create identity provider: %w", err)
	}

	cipher, err := auth.NewCipher(cfg.SecretKey)
	if err != nil {
		return err
	}

	states := auth.NewStateCache(cfg.StateTTL, cfg.StateCapacity, logger)
	defer states.Close()

	credentials := auth.NewStore(cipher, logger)
	defer credentials.Clear()

	orchestrator, err := auth.NewOrchestrator(auth.OrchestratorConfig{
		Provider:    provider,
		States:      states,
		Credentials: credentials,
		Scopes:      cfg.Scopes,
		Logger:      logger,
		Metrics:     instrProvider.Metrics(),
	})
	if err != nil {
		return err
	}

	authServer, err := server.New(server.Config{
		Orchestrator: orchestrator,
		Version:      version,
		MissingVars:  cfg.MissingVars(),
		Logger:       logger,
		Metrics:      instrProvider.Metrics(),
	})
	if err != nil {
		return err
	}

	metricsServer := server.NewMetricsServer(cfg.MetricsAddr)

	errCh := make(chan error, 2)
	go func() {
		if err := authServer.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	if err := authServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("auth server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
