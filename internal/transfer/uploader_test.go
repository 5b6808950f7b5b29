package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func completeUnitFiles() map[string]int {
	return map[string]int{
		"part2_output/inpainted_video.mp4":    4096,
		"part2_output/masked_area_filled.mp4": 2048,
		"part2_output/inpainted_frame.png":    1024,
	}
}

func newTestUploader(store *fakeStore, configsDir string) *Uploader {
	cfg := testConfig(configsDir)
	return NewUploader(store, NewChecker(cfg), cfg)
}

func TestUploader_Upload(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	writeUnitFiles(t, resultsDir, "000005000009", completeUnitFiles())
	writeUnitFiles(t, resultsDir, "000005000016", completeUnitFiles())

	store := newFakeStore()
	store.put("research/raw/000005000009.0_processed.mp4", 512)
	u := newTestUploader(store, t.TempDir())

	report, results, err := u.Upload(context.Background(), "20", resultsDir, UploadOptions{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	require.Equal(t, "000005000009", results[0].ItemID)
	require.Equal(t, "000005000016", results[1].ItemID)
	for _, res := range results {
		require.Equal(t, StatusOK, res.Status)
		require.Equal(t, 3, res.Files)
	}

	require.Equal(t, []string{
		"research/batch_results/batch_20/000005000009/part2_output/inpainted_frame.png",
		"research/batch_results/batch_20/000005000009/part2_output/inpainted_video.mp4",
		"research/batch_results/batch_20/000005000009/part2_output/masked_area_filled.mp4",
		"research/batch_results/batch_20/000005000016/part2_output/inpainted_frame.png",
		"research/batch_results/batch_20/000005000016/part2_output/inpainted_video.mp4",
		"research/batch_results/batch_20/000005000016/part2_output/masked_area_filled.mp4",
	}, store.uploadedKeys())

	// the destination prefix now lists exactly what was uploaded; the
	// unrelated raw object stays outside the listing
	listed, err := store.ListObjects(context.Background(), u.Destination("20"))
	require.NoError(t, err)
	keys := make([]string, 0, len(listed))
	for _, obj := range listed {
		keys = append(keys, obj.Key)
	}
	require.Equal(t, store.uploadedKeys(), keys)

	require.Equal(t, "20", report.BatchID)
	require.Equal(t, 2, report.TotalVideoDirs)
	require.Equal(t, 2, report.UploadedVideos)
	require.Equal(t, 0, report.FailedVideos)
	require.Equal(t, 6, report.TotalFilesUploaded)
	require.Equal(t, "research/batch_results/batch_20/", report.AzureDestination)
	require.InDelta(t, 100.0, report.SuccessRate, 0.001)
}

func TestUploader_SkipsMatchingRemoteObjects(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	writeUnitFiles(t, resultsDir, "000005000009", completeUnitFiles())

	store := newFakeStore()
	// remote already holds the video at the same size
	store.put("research/batch_results/batch_20/000005000009/part2_output/inpainted_video.mp4", 4096)

	u := newTestUploader(store, t.TempDir())
	report, results, err := u.Upload(context.Background(), "20", resultsDir, UploadOptions{})
	require.NoError(t, err)

	require.Equal(t, StatusOK, results[0].Status)
	require.Equal(t, 3, results[0].Files)
	require.NotContains(t, store.uploadedKeys(),
		"research/batch_results/batch_20/000005000009/part2_output/inpainted_video.mp4")
	require.Equal(t, 3, report.TotalFilesUploaded)
}

func TestUploader_FailedFileFailsUnit(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	writeUnitFiles(t, resultsDir, "000005000009", completeUnitFiles())

	store := newFakeStore()
	store.fail("research/batch_results/batch_20/000005000009/part2_output/inpainted_video.mp4",
		errors.New("connection reset"))

	u := newTestUploader(store, t.TempDir())
	report, results, err := u.Upload(context.Background(), "20", resultsDir, UploadOptions{})
	require.NoError(t, err)

	require.Equal(t, StatusWriteFailed, results[0].Status)
	require.ErrorContains(t, results[0].Err, "connection reset")

	// the sibling files were still sent
	require.Contains(t, store.uploadedKeys(),
		"research/batch_results/batch_20/000005000009/part2_output/inpainted_frame.png")
	require.Equal(t, 1, report.FailedVideos)
	require.Equal(t, 0, report.UploadedVideos)
}

func TestUploader_CompleteOnly(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	writeUnitFiles(t, resultsDir, "000005000009", completeUnitFiles())

	incomplete := completeUnitFiles()
	delete(incomplete, "part2_output/inpainted_frame.png")
	// an undersized artifact counts as missing too
	incomplete["part2_output/masked_area_filled.mp4"] = 10
	writeUnitFiles(t, resultsDir, "000005000016", incomplete)

	store := newFakeStore()
	u := newTestUploader(store, t.TempDir())

	report, results, err := u.Upload(context.Background(), "20", resultsDir, UploadOptions{CompleteOnly: true})
	require.NoError(t, err)

	require.Len(t, results, 2)
	require.Equal(t, StatusOK, results[0].Status)
	require.Equal(t, "000005000016", results[1].ItemID)
	require.Equal(t, StatusSkipped, results[1].Status)
	require.ErrorContains(t, results[1].Err, "inpainted_frame.png")
	require.ErrorContains(t, results[1].Err, "masked_area_filled.mp4")

	for _, key := range store.uploadedKeys() {
		require.NotContains(t, key, "000005000016")
	}

	require.Equal(t, 2, report.TotalVideoDirs)
	require.Equal(t, 1, report.UploadedVideos)
	require.Equal(t, 1, report.SkippedVideos)
	require.Equal(t, 0, report.FailedVideos)
	require.InDelta(t, 100.0, report.SuccessRate, 0.001)
}

func TestUploader_EmptyUnitSkipped(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(resultsDir, "000005000042"), 0o755))

	u := newTestUploader(newFakeStore(), t.TempDir())
	report, results, err := u.Upload(context.Background(), "20", resultsDir, UploadOptions{})
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Equal(t, StatusSkipped, results[0].Status)
	require.NoError(t, results[0].Err)
	require.Equal(t, 1, report.SkippedVideos)
	require.Equal(t, 0, report.UploadedVideos)
}

func TestUploader_StartFromAndLimit(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	writeUnitFiles(t, resultsDir, "000005000001", completeUnitFiles())
	writeUnitFiles(t, resultsDir, "000005000002", completeUnitFiles())
	writeUnitFiles(t, resultsDir, "000005000021", completeUnitFiles())
	writeUnitFiles(t, resultsDir, "000005000030", completeUnitFiles())

	store := newFakeStore()
	u := newTestUploader(store, t.TempDir())

	report, results, err := u.Upload(context.Background(), "20", resultsDir, UploadOptions{
		StartFrom: "000005000021",
		Limit:     1,
	})
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Equal(t, "000005000021", results[0].ItemID)
	require.Equal(t, 1, report.TotalVideoDirs)

	for _, key := range store.uploadedKeys() {
		require.Contains(t, key, "000005000021")
	}
}

func TestUploader_MissingResultsDir(t *testing.T) {
	t.Parallel()

	u := newTestUploader(newFakeStore(), t.TempDir())
	_, _, err := u.Upload(context.Background(), "20", filepath.Join(t.TempDir(), "nope"), UploadOptions{})
	require.ErrorContains(t, err, "results directory not found")
}

func TestUploader_ResultsDirNotAccessible(t *testing.T) {
	t.Parallel()

	// statting through a regular file fails with ENOTDIR rather than ENOENT
	file := filepath.Join(t.TempDir(), "results")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	u := newTestUploader(newFakeStore(), t.TempDir())
	_, _, err := u.Upload(context.Background(), "20", filepath.Join(file, "units"), UploadOptions{})
	require.ErrorContains(t, err, "results directory not accessible")
	require.NotContains(t, err.Error(), "not found")
}

func TestUploader_IgnoresForeignDirectories(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	writeUnitFiles(t, resultsDir, "000005000009", completeUnitFiles())
	// not a unit: wrong prefix
	writeUnitFiles(t, resultsDir, "scratch", map[string]int{"notes.txt": 64})

	store := newFakeStore()
	u := newTestUploader(store, t.TempDir())

	_, results, err := u.Upload(context.Background(), "20", resultsDir, UploadOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "000005000009", results[0].ItemID)
}
