// cmd/lending/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/config"
	"lendingdesk/internal/journal"
	"lendingdesk/internal/server"
	"lendingdesk/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the lending desk HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	j := journal.New(time.Now)
	cat := catalog.NewService(catalog.WithJournal(j))
	ledger, err := circulation.NewService(cat, cfg.Policy, circulation.WithJournal(j))
	if err != nil {
		return err
	}

	if cfg.SeedCatalog != "" {
		if err := seedCatalog(ctx, logger, cat, cfg.SeedCatalog); err != nil {
			return err
		}
	}

	srv := server.New(ledger, cat, j,
		server.WithLogger(logger),
		server.WithRegistrationLimit(cfg.RegistrationRatePerMinute),
	)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lending desk listening",
			slog.String("addr", httpServer.Addr),
			slog.Int("loan_period_days", cfg.Policy.LoanPeriodDays),
			slog.Float64("fine_per_day", cfg.Policy.FinePerDay),
			slog.Int("loan_limit", cfg.Policy.LoanLimit),
			slog.Float64("fine_ceiling", cfg.Policy.FineCeiling),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(httpServer.Shutdown(shutdownCtx), shutdownTracing(shutdownCtx))
}

func seedCatalog(ctx context.Context, logger *slog.Logger, cat catalog.Service, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed catalog: %w", err)
	}
	defer f.Close()

	result, err := catalog.Import(ctx, cat, f)
	if err != nil {
		return err
	}
	logger.Info("catalog seeded",
		slog.String("path", path),
		slog.Int("imported", result.Imported),
		slog.Int("rejected", len(result.Errors)),
	)
	for _, lineErr := range result.Errors {
		logger.Warn("seed line rejected",
			slog.Int("line", lineErr.Line),
			slog.String("kind", lineErr.Kind),
			slog.String("message", lineErr.Message),
		)
	}
	return nil
}
