package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"token_ledger/internal/app/service"
	"token_ledger/internal/domain/entity"
	"token_ledger/internal/infrastructure/restapi"
	"token_ledger/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger with its HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegisterMetrics()

	app, err := buildApplication(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer app.close()

	app.facade.Subscribe(service.SubscriberFuncs{
		Snapshot: func(s entity.Snapshot) {
			zapLogger.Debug("Snapshot published", zap.Int("tokens", len(s.Tokens)), zap.Int("tickers", len(s.Tickers)))
		},
		Failure: func(k entity.FailureKind) {
			zapLogger.Warn("Ledger failure reported", zap.String("kind", string(k)))
		},
	})
	go drainEvents(app.facade.Events())

	if err := app.facade.Open(ctx); err != nil {
		return err
	}
	go runFullSyncs(ctx, app.facade)

	if zapLogger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := restapi.SetupRouter(
		restapi.NewLedgerHandler(app.facade, app.owner, zapLogger),
		restapi.RouterOptions{
			AllowedOrigins: cfg.Server.CORSAllowedOrigins,
			SyncTimeout:    time.Duration(cfg.Sync.FullSyncTimeoutSeconds) * time.Second,
		},
		zapLogger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			zapLogger.Error("HTTP server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	zapLogger.Info("Server exiting")
	return nil
}

// runFullSyncs runs one full sync at start and then on the configured interval.
func runFullSyncs(ctx context.Context, facade *service.SyncFacade) {
	syncOnce := func() {
		syncCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Sync.FullSyncTimeoutSeconds)*time.Second)
		defer cancel()
		if err := facade.FullSync(syncCtx); err != nil && ctx.Err() == nil {
			facade.ReportFailure(entity.FailedToFetch)
		}
	}

	syncOnce()
	if cfg.Sync.FullSyncIntervalSeconds <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(cfg.Sync.FullSyncIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncOnce()
		}
	}
}

func drainEvents(events <-chan entity.RefreshEvent) {
	if events == nil {
		return
	}
	for ev := range events {
		zapLogger.Warn("Refresh failure absorbed",
			zap.String("kind", string(ev.Kind)),
			zap.String("contract", ev.Contract),
			zap.Time("at", ev.At),
			zap.Error(ev.Err))
	}
}
