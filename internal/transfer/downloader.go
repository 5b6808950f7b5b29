// internal/transfer/downloader.go
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/Ruijian-Zha/azure-sync/internal/blobstore"
	"github.com/Ruijian-Zha/azure-sync/internal/config"
	"github.com/Ruijian-Zha/azure-sync/internal/manifest"
)

// DownloadOptions narrows a batch download to a window of the manifest.
type DownloadOptions struct {
	// Limit caps the number of pairs to download; zero means all.
	Limit int
	// StartFrom skips ahead to the first pair whose video file name
	// contains this fragment. When nothing matches, the full list is used.
	StartFrom string
}

// Downloader fetches manifest-driven video/image pairs from the store.
type Downloader struct {
	store     blobstore.Client
	manifests *manifest.Repository
	paths     config.PathsConfig
	workers   int
}

// NewDownloader creates a downloader bound to a store client and a local
// manifest repository.
func NewDownloader(store blobstore.Client, manifests *manifest.Repository, cfg *config.Config) *Downloader {
	workers := cfg.Transfer.Concurrency
	if workers < 1 {
		workers = 1
	}

	return &Downloader{
		store:     store,
		manifests: manifests,
		paths:     cfg.Paths,
		workers:   workers,
	}
}

// Download fetches the selected pairs of one batch into
// <outputDir>/batch_<id>_data/<video_id>/. Per-pair failures are recorded in
// the results rather than aborting the run; the returned error covers setup
// problems and context cancellation. On cancellation the results cover the
// pairs that were started.
func (d *Downloader) Download(ctx context.Context, batchID, outputDir string, opts DownloadOptions) (*DownloadReport, []Result, error) {
	m, err := d.manifests.Load(batchID)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("batch_id", batchID).Int("pairs", len(m.Entries)).Msg("loaded batch manifest")

	destDir := filepath.Join(outputDir, "batch_"+batchID+"_data")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory %s: %w", destDir, err)
	}

	pairs := selectPairs(m.Entries, opts)
	if opts.StartFrom != "" {
		log.Info().Str("start_from", opts.StartFrom).Msg("starting from requested video")
	}
	if opts.Limit > 0 {
		log.Info().Int("limit", opts.Limit).Msg("limiting number of pairs")
	}
	log.Info().Str("batch_id", batchID).Int("count", len(pairs)).Msg("downloading video-image pairs")

	start := time.Now()
	results, runErr := d.downloadPairs(ctx, destDir, pairs)
	report := NewDownloadReport(batchID, destDir, len(pairs), results, time.Since(start))
	return report, results, runErr
}

// downloadPairs fans the pairs out over a bounded worker pool. Each worker
// records its outcome at the pair's index so result order follows manifest
// order.
func (d *Downloader) downloadPairs(ctx context.Context, destDir string, pairs []manifest.PairRecord) ([]Result, error) {
	results := make([]Result, len(pairs))
	sem := semaphore.NewWeighted(int64(d.workers))
	var wg sync.WaitGroup

	for i, pair := range pairs {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return results[:i], fmt.Errorf("download interrupted: %w", err)
		}

		wg.Add(1)
		go func(i int, pair manifest.PairRecord) {
			defer wg.Done()
			defer sem.Release(1)

			log.Info().
				Int("position", i+1).
				Int("total", len(pairs)).
				Str("video_id", pair.VideoID).
				Msg("processing pair")

			res := d.downloadPair(ctx, destDir, pair)
			results[i] = res

			if res.Err != nil {
				log.Error().Err(res.Err).Str("video_id", pair.VideoID).Msg("pair download failed")
			} else {
				log.Info().
					Str("video_id", pair.VideoID).
					Str("bytes", humanize.Comma(res.Bytes)).
					Msg("pair downloaded")
			}
		}(i, pair)
	}

	wg.Wait()
	return results, nil
}

// downloadPair fetches both files of a pair into the unit directory. The
// image is attempted even when the video fails so reruns have less left to
// do. A pair only counts as downloaded when both files landed.
func (d *Downloader) downloadPair(ctx context.Context, destDir string, pair manifest.PairRecord) Result {
	unitDir := filepath.Join(destDir, pair.VideoID)
	res := Result{ItemID: pair.VideoID, LocalPath: unitDir}

	videoBytes, videoSkipped, videoErr := d.fetchObject(ctx,
		path.Join(d.paths.VideoPrefix, pair.VideoFile),
		filepath.Join(unitDir, pair.VideoFile))
	imageBytes, imageSkipped, imageErr := d.fetchObject(ctx,
		path.Join(d.paths.ImagePrefix, pair.ImageFile),
		filepath.Join(unitDir, pair.ImageFile))

	if videoErr == nil && imageErr == nil {
		res.Status = StatusOK
		if videoSkipped && imageSkipped {
			res.Status = StatusSkipped
		}
		res.Files = 2
		res.Bytes = videoBytes + imageBytes
		return res
	}

	res.Status = StatusWriteFailed
	res.Err = videoErr
	if res.Err == nil {
		res.Err = imageErr
	}
	// a pair with any object absent from the store reports missing_remote
	for _, ferr := range []error{videoErr, imageErr} {
		if errors.Is(ferr, blobstore.ErrObjectNotFound) {
			res.Status = StatusMissingRemote
			res.Err = ferr
			break
		}
	}
	return res
}

// fetchObject downloads one object unless a local copy with the matching size
// is already present. When the remote size cannot be verified the download
// proceeds anyway.
func (d *Downloader) fetchObject(ctx context.Context, key, destPath string) (int64, bool, error) {
	if st, statErr := os.Stat(destPath); statErr == nil {
		if remote, err := d.store.StatObject(ctx, key); err == nil && remote.Size == st.Size() {
			log.Debug().
				Str("key", key).
				Str("bytes", humanize.Comma(st.Size())).
				Msg("skipping download, local copy matches")
			return st.Size(), true, nil
		}
	}

	n, err := d.store.DownloadObject(ctx, key, destPath)
	if err != nil {
		return 0, false, err
	}
	log.Debug().Str("key", key).Str("bytes", humanize.Comma(n)).Msg("downloaded object")
	return n, false, nil
}

// selectPairs applies the start-from and limit window in manifest order.
func selectPairs(entries []manifest.PairRecord, opts DownloadOptions) []manifest.PairRecord {
	selected := entries
	if opts.StartFrom != "" {
		for i, entry := range selected {
			if strings.Contains(entry.VideoFile, opts.StartFrom) {
				selected = selected[i:]
				break
			}
		}
	}
	if opts.Limit > 0 && opts.Limit < len(selected) {
		selected = selected[:opts.Limit]
	}
	return selected
}
