// cmd/upload/main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Ruijian-Zha/azure-sync/internal/blobstore"
	"github.com/Ruijian-Zha/azure-sync/internal/config"
	"github.com/Ruijian-Zha/azure-sync/internal/transfer"
	"github.com/Ruijian-Zha/azure-sync/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "azure-upload",
		Usage: "Upload processed batch results back to the blob store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "batch",
				Usage:    "Batch ID the results belong to (e.g., 001, 002)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "results",
				Usage:    "Local directory containing processed video folders",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Limit number of video folders to upload",
			},
			&cli.StringFlag{
				Name:  "start-from",
				Usage: "Video ID to start uploading from",
			},
			&cli.BoolFlag{
				Name:  "complete-only",
				Usage: "Upload only folders with all required output files",
			},
			&cli.BoolFlag{
				Name:  "check-only",
				Usage: "Check folder completeness without uploading",
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "Blob store endpoint (overrides environment)",
				EnvVars: []string{"AZSYNC_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "access-key",
				Usage:   "Blob store access key (overrides environment)",
				EnvVars: []string{"AZSYNC_ACCESS_KEY"},
			},
			&cli.StringFlag{
				Name:    "secret-key",
				Usage:   "Blob store secret key (overrides environment)",
				EnvVars: []string{"AZSYNC_SECRET_KEY"},
			},
			&cli.StringFlag{
				Name:    "bucket",
				Usage:   "Blob store bucket (overrides environment)",
				EnvVars: []string{"AZSYNC_BUCKET"},
			},
		},
		Action: runUpload,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("fatal error")
	}
}

func runUpload(c *cli.Context) error {
	cfg := config.Load()
	applyStoreOverrides(c, cfg)

	if err := logger.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		return err
	}

	batchID := c.String("batch")
	resultsDir := c.String("results")
	checker := transfer.NewChecker(cfg)

	if c.Bool("check-only") {
		return runCheck(checker, batchID, resultsDir)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := blobstore.NewMinioClient(storeConfig(cfg))
	if err != nil {
		return err
	}
	if err := store.Verify(ctx); err != nil {
		return fmt.Errorf("store verification failed: %w", err)
	}

	uploader := transfer.NewUploader(store, checker, cfg)
	report, _, err := uploader.Upload(ctx, batchID, resultsDir, transfer.UploadOptions{
		Limit:        c.Int("limit"),
		StartFrom:    c.String("start-from"),
		CompleteOnly: c.Bool("complete-only"),
	})
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("batch_id", report.BatchID).
		Int("uploaded", report.UploadedVideos).
		Int("failed", report.FailedVideos).
		Int("skipped", report.SkippedVideos).
		Str("success_rate", fmt.Sprintf("%.1f%%", report.SuccessRate)).
		Int("files", report.TotalFilesUploaded).
		Str("total_size", fmt.Sprintf("%.1f MB", report.TotalSizeMB)).
		Str("elapsed", fmt.Sprintf("%.1fs", report.ElapsedTimeSec)).
		Str("destination", report.AzureDestination).
		Msg("upload summary")

	reportPath, err := report.Write()
	if err != nil {
		return err
	}
	logger.Log.Info().Str("path", reportPath).Msg("saved upload report")

	logger.Log.Info().Msg("upload completed")
	return nil
}

// runCheck reports folder completeness without touching the store.
func runCheck(checker *transfer.Checker, batchID, resultsDir string) error {
	records, err := checker.Check(resultsDir)
	if err != nil {
		return err
	}

	incomplete := 0
	for _, rec := range records {
		if rec.Complete() {
			continue
		}
		incomplete++
		logger.Log.Warn().
			Str("video_id", rec.UnitID).
			Strs("missing", rec.Missing).
			Msg("incomplete video folder")
	}

	logger.Log.Info().
		Str("batch_id", batchID).
		Int("total", len(records)).
		Int("complete", len(records)-incomplete).
		Int("incomplete", incomplete).
		Msg("completeness check finished")
	return nil
}

// applyStoreOverrides lets connection flags win over the environment-driven
// config.
func applyStoreOverrides(c *cli.Context, cfg *config.Config) {
	if v := c.String("endpoint"); v != "" {
		cfg.Store.Endpoint = v
	}
	if v := c.String("access-key"); v != "" {
		cfg.Store.AccessKey = v
	}
	if v := c.String("secret-key"); v != "" {
		cfg.Store.SecretKey = v
	}
	if v := c.String("bucket"); v != "" {
		cfg.Store.Bucket = v
	}
}

func storeConfig(cfg *config.Config) blobstore.Config {
	return blobstore.Config{
		Endpoint:      cfg.Store.Endpoint,
		AccessKey:     cfg.Store.AccessKey,
		SecretKey:     cfg.Store.SecretKey,
		Bucket:        cfg.Store.Bucket,
		Region:        cfg.Store.Region,
		UseSSL:        cfg.Store.UseSSL,
		RetryAttempts: cfg.Transfer.RetryAttempts,
	}
}
