// cmd/download/main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Ruijian-Zha/azure-sync/internal/blobstore"
	"github.com/Ruijian-Zha/azure-sync/internal/config"
	"github.com/Ruijian-Zha/azure-sync/internal/manifest"
	"github.com/Ruijian-Zha/azure-sync/internal/transfer"
	"github.com/Ruijian-Zha/azure-sync/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "azure-download",
		Usage: "Download video-image pairs for a batch from the blob store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "batch",
				Usage: "Batch ID to download (e.g., 001, 002)",
			},
			&cli.StringFlag{
				Name:    "output",
				Usage:   "Output directory for downloaded batches",
				Value:   "./azure_downloads",
				EnvVars: []string{"AZSYNC_OUTPUT_DIR"},
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Limit number of video pairs to download",
			},
			&cli.StringFlag{
				Name:  "start-from",
				Usage: "Video ID to start downloading from",
			},
			&cli.BoolFlag{
				Name:  "list-batches",
				Usage: "List available batch configurations and exit",
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
		Action: runDownload,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("fatal error")
	}
}

func runDownload(c *cli.Context) error {
	cfg := config.Load()
	applyStoreOverrides(c, cfg)

	if err := logger.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		return err
	}

	manifests := manifest.NewRepository(cfg.Paths.BatchConfigsDir)

	if c.Bool("list-batches") {
		batches, err := manifests.ListBatches()
		if err != nil {
			return err
		}
		logger.Log.Info().
			Int("count", len(batches)).
			Str("batches", strings.Join(batches, ", ")).
			Msg("available batches")
		return nil
	}

	batchID := c.String("batch")
	if batchID == "" {
		return fmt.Errorf("--batch is required unless --list-batches is set")
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

	downloader := transfer.NewDownloader(store, manifests, cfg)
	report, _, err := downloader.Download(ctx, batchID, c.String("output"), transfer.DownloadOptions{
		Limit:     c.Int("limit"),
		StartFrom: c.String("start-from"),
	})
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("batch_id", report.BatchID).
		Int("downloaded", report.Downloaded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Str("success_rate", fmt.Sprintf("%.1f%%", report.SuccessRate)).
		Str("total_size", fmt.Sprintf("%.1f MB", report.TotalSizeMB)).
		Str("elapsed", fmt.Sprintf("%.1fs", report.ElapsedTimeSec)).
		Str("output", report.OutputDirectory).
		Msg("download summary")

	reportPath, err := report.Write()
	if err != nil {
		return err
	}
	logger.Log.Info().Str("path", reportPath).Msg("saved download report")

	logger.Log.Info().Msg("download completed")
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
