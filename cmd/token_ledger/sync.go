package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"token_ledger/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full sync and print the resulting snapshot as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runSync(ctx, cmd.OutOrStdout())
	},
}

func runSync(ctx context.Context, out io.Writer) error {
	app, err := buildApplication(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.facade.Open(ctx); err != nil {
		return err
	}

	syncCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Sync.FullSyncTimeoutSeconds)*time.Second)
	defer cancel()
	if err := app.facade.FullSync(syncCtx); err != nil {
		app.facade.ReportFailure(entity.FailedToFetch)
		return err
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(app.facade.CurrentSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
