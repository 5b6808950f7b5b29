package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
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
)

// UploadOptions narrows an upload run to a window of the local result units.
type UploadOptions struct {
	// Limit caps the number of units to upload; zero means all. In
	// complete-only mode the cap applies after incomplete units are
	// dropped.
	Limit int
	// StartFrom skips ahead to the first unit whose id contains this
	// fragment. When nothing matches, the full list is used.
	StartFrom string
	// CompleteOnly skips units that are missing required artifacts
	// instead of uploading them partially.
	CompleteOnly bool
}

// Uploader sends local result units to the store.
type Uploader struct {
	store         blobstore.Client
	checker       *Checker
	resultsPrefix string
	unitPrefix    string
	workers       int
}

// NewUploader creates an uploader bound to a store client. The checker is
// consulted in complete-only mode.
func NewUploader(store blobstore.Client, checker *Checker, cfg *config.Config) *Uploader {
	workers := cfg.Transfer.Concurrency
	if workers < 1 {
		workers = 1
	}

	return &Uploader{
		store:         store,
		checker:       checker,
		resultsPrefix: cfg.Paths.ResultsPrefix,
		unitPrefix:    cfg.Transfer.UnitPrefix,
		workers:       workers,
	}
}

// Destination returns the store prefix that receives a batch's results.
func (u *Uploader) Destination(batchID string) string {
	return path.Join(u.resultsPrefix, "batch_"+batchID) + "/"
}

// Upload sends the selected result units of one batch to
// <resultsPrefix>/batch_<id>/<unit>/..., preserving each unit's directory
// layout. Per-unit failures are recorded in the results rather than aborting
// the run; the returned error covers setup problems and context cancellation.
func (u *Uploader) Upload(ctx context.Context, batchID, resultsDir string, opts UploadOptions) (*UploadReport, []Result, error) {
	if _, err := os.Stat(resultsDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("results directory not found: %s", resultsDir)
		}
		return nil, nil, fmt.Errorf("results directory not accessible %s: %w", resultsDir, err)
	}

	units, err := listUnitDirs(resultsDir, u.unitPrefix)
	if err != nil {
		return nil, nil, err
	}

	units = selectUnits(units, opts.StartFrom)
	if opts.StartFrom != "" {
		log.Info().Str("start_from", opts.StartFrom).Msg("starting from requested unit")
	}

	var skippedResults []Result
	if opts.CompleteOnly {
		units, skippedResults, err = u.dropIncomplete(resultsDir, units)
		if err != nil {
			return nil, nil, err
		}
	}

	if opts.Limit > 0 && opts.Limit < len(units) {
		units = units[:opts.Limit]
		log.Info().Int("limit", opts.Limit).Msg("limiting number of units")
	}

	log.Info().Str("batch_id", batchID).Int("count", len(units)).Msg("uploading result units")

	start := time.Now()
	results, runErr := u.uploadUnits(ctx, batchID, resultsDir, units)
	requested := len(units) + len(skippedResults)
	results = append(results, skippedResults...)
	report := NewUploadReport(batchID, resultsDir, u.Destination(batchID), requested, results, time.Since(start))
	return report, results, runErr
}

// dropIncomplete splits the unit list into complete units and skipped results
// for the rest.
func (u *Uploader) dropIncomplete(resultsDir string, units []string) ([]string, []Result, error) {
	records, err := u.checker.Check(resultsDir)
	if err != nil {
		return nil, nil, err
	}

	missing := make(map[string][]string, len(records))
	complete := make(map[string]bool, len(records))
	for _, rec := range records {
		complete[rec.UnitID] = rec.Complete()
		missing[rec.UnitID] = rec.Missing
	}

	var kept []string
	var skipped []Result
	for _, unit := range units {
		if complete[unit] {
			kept = append(kept, unit)
			continue
		}
		skipped = append(skipped, Result{
			ItemID:    unit,
			Status:    StatusSkipped,
			LocalPath: filepath.Join(resultsDir, unit),
			Err:       fmt.Errorf("missing required artifacts: %s", strings.Join(missing[unit], ", ")),
		})
	}

	log.Info().
		Int("complete", len(kept)).
		Int("incomplete", len(skipped)).
		Msg("checked result completeness")
	return kept, skipped, nil
}

// uploadUnits fans the units out over a bounded worker pool, recording each
// outcome at the unit's index.
func (u *Uploader) uploadUnits(ctx context.Context, batchID, resultsDir string, units []string) ([]Result, error) {
	results := make([]Result, len(units))
	sem := semaphore.NewWeighted(int64(u.workers))
	var wg sync.WaitGroup

	for i, unit := range units {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return results[:i], fmt.Errorf("upload interrupted: %w", err)
		}

		wg.Add(1)
		go func(i int, unit string) {
			defer wg.Done()
			defer sem.Release(1)

			log.Info().
				Int("position", i+1).
				Int("total", len(units)).
				Str("video_id", unit).
				Msg("uploading unit")

			res := u.uploadUnit(ctx, batchID, resultsDir, unit)
			results[i] = res

			switch {
			case res.Err != nil:
				log.Error().Err(res.Err).Str("video_id", unit).Msg("unit upload failed")
			case res.Status == StatusSkipped:
				log.Warn().Str("video_id", unit).Msg("unit has no files to upload")
			default:
				log.Info().
					Str("video_id", unit).
					Int("files", res.Files).
					Str("bytes", humanize.Comma(res.Bytes)).
					Msg("unit uploaded")
			}
		}(i, unit)
	}

	wg.Wait()
	return results, nil
}

// uploadUnit walks one unit directory and sends every file. Remaining files
// are still attempted after a failure so reruns have less left to do, but the
// unit only counts as uploaded when every file landed.
func (u *Uploader) uploadUnit(ctx context.Context, batchID, resultsDir, unit string) Result {
	unitDir := filepath.Join(resultsDir, unit)
	keyBase := path.Join(u.resultsPrefix, "batch_"+batchID, unit)
	res := Result{ItemID: unit, LocalPath: unitDir}

	walkErr := filepath.WalkDir(unitDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(unitDir, p)
		if err != nil {
			return err
		}
		key := keyBase + "/" + filepath.ToSlash(rel)

		n, sendErr := u.sendFile(ctx, p, key)
		if sendErr != nil {
			if res.Err == nil {
				res.Err = sendErr
			}
			return nil
		}
		res.Files++
		res.Bytes += n
		return nil
	})
	if walkErr != nil && res.Err == nil {
		res.Err = walkErr
	}

	switch {
	case res.Err != nil:
		res.Status = StatusWriteFailed
	case res.Files == 0:
		res.Status = StatusSkipped
	default:
		res.Status = StatusOK
	}
	return res
}

// sendFile uploads one file unless the store already holds an object of the
// same size at the key.
func (u *Uploader) sendFile(ctx context.Context, srcPath, key string) (int64, error) {
	st, err := os.Stat(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", srcPath, err)
	}

	if remote, statErr := u.store.StatObject(ctx, key); statErr == nil && remote.Size == st.Size() {
		log.Debug().
			Str("key", key).
			Str("bytes", humanize.Comma(st.Size())).
			Msg("skipping upload, remote object matches")
		return st.Size(), nil
	}

	n, err := u.store.UploadObject(ctx, srcPath, key)
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s to %s: %w", srcPath, key, err)
	}
	log.Debug().Str("key", key).Str("bytes", humanize.Comma(n)).Msg("uploaded object")
	return n, nil
}

// selectUnits applies the start-from window over the sorted unit list.
func selectUnits(units []string, startFrom string) []string {
	if startFrom == "" {
		return units
	}
	for i, unit := range units {
		if strings.Contains(unit, startFrom) {
			return units[i:]
		}
	}
	return units
}
