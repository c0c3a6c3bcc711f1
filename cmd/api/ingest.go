package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/app"
)

func ingestCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Scrape the configured feeds once and rebuild the article index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			application, err := app.NewApp(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("startup failed: %w", err)
			}
			defer application.Close()

			res, err := application.Ingestor.Run(ctx)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			log.Info("ingestion finished",
				zap.String("run_id", res.RunID),
				zap.Int("fetched", res.Fetched),
				zap.Int("indexed", res.Indexed),
				zap.Int64("pruned", res.Pruned),
				zap.Int64("total", res.Total),
				zap.String("archive", res.ArchiveURL),
			)
			return nil
		},
	}
}
