package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"requirements-agent/handler"
	"requirements-agent/internal/config"
	"requirements-agent/internal/console"
	"requirements-agent/web"
)

const appName = "requirements-agent"

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	serve := serveCmd(&logLevel)
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Guided requirements-gathering assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve, lambdaCmd(&logLevel), chatCmd(&logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}

// loadConfig reads .env (if present) and the environment, and applies the
// --log-level override.
func loadConfig(logLevel string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func serveCmd(logLevel *string) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the chat page and API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Port = port
			}
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(logger)
			return runServer(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port; overrides PORT")
	return cmd
}

func runServer(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "err", err)
		return err
	}
	if a.memory != nil {
		a.memory.StartSweeper(ctx, sweepInterval(cfg.SessionTTL), logger)
		logger.Info("session sweeper started", "session_ttl", cfg.SessionTTL)
	}

	router, err := a.router(web.SPAHandler())
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.GatewayTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "err", err)
			return err
		}
	case <-ctx.Done():
	}
	stop()

	logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

func lambdaCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve the API as an AWS Lambda function behind API Gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(logger)

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to initialize", "err", err)
				return err
			}
			router, err := a.router(nil)
			if err != nil {
				return err
			}
			lambda.Start(handler.NewLambda(router).Handle)
			return nil
		},
	}
}

func chatCmd(logLevel *string) *cobra.Command {
	var exportDir string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if *logLevel == "" {
				*logLevel = "warn"
			}
			cfg, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return console.New(a.sessions, cmd.InOrStdin(), cmd.OutOrStdout(), exportDir).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&exportDir, "export-dir", ".", "Directory for /export without a path")
	return cmd
}
