package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ruijian-Zha/azure-sync/internal/blobstore"
	"github.com/Ruijian-Zha/azure-sync/internal/config"
)

// fakeStore is an in-memory blobstore.Client for transfer tests.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failKeys  map[string]error
	uploads   []string
	downloads []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  make(map[string][]byte),
		failKeys: make(map[string]error),
	}
}

func (f *fakeStore) put(key string, size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = bytes.Repeat([]byte("x"), size)
}

func (f *fakeStore) fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failKeys[key] = err
}

func (f *fakeStore) uploadedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := append([]string(nil), f.uploads...)
	sort.Strings(keys)
	return keys
}

func (f *fakeStore) downloadedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := append([]string(nil), f.downloads...)
	sort.Strings(keys)
	return keys
}

func (f *fakeStore) Verify(ctx context.Context) error { return nil }

func (f *fakeStore) StatObject(ctx context.Context, key string) (blobstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failKeys[key]; err != nil {
		return blobstore.ObjectInfo{}, err
	}
	data, ok := f.objects[key]
	if !ok {
		return blobstore.ObjectInfo{}, fmt.Errorf("%w: %s", blobstore.ErrObjectNotFound, key)
	}
	return blobstore.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeStore) ListObjects(ctx context.Context, prefix string) ([]blobstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []blobstore.ObjectInfo
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, blobstore.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (f *fakeStore) DownloadObject(ctx context.Context, key string, destPath string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failKeys[key]; err != nil {
		return 0, err
	}
	data, ok := f.objects[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", blobstore.ErrObjectNotFound, key)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return 0, err
	}
	f.downloads = append(f.downloads, key)
	return int64(len(data)), nil
}

func (f *fakeStore) UploadObject(ctx context.Context, srcPath string, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failKeys[key]; err != nil {
		return 0, err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return 0, err
	}
	f.objects[key] = data
	f.uploads = append(f.uploads, key)
	return int64(len(data)), nil
}

var _ blobstore.Client = (*fakeStore)(nil)

func testConfig(configsDir string) *config.Config {
	return &config.Config{
		Paths: config.PathsConfig{
			BatchConfigsDir: configsDir,
			VideoPrefix:     "research/raw",
			ImagePrefix:     "research/celeba-hq",
			ResultsPrefix:   "research/batch_results",
		},
		Transfer: config.TransferConfig{
			Concurrency:      2,
			MinArtifactBytes: 100,
			UnitPrefix:       "00000500",
			ExpectedArtifacts: []string{
				"part2_output/inpainted_video.mp4",
				"part2_output/masked_area_filled.mp4",
				"part2_output/inpainted_frame.png",
			},
		},
	}
}

// writeUnitFiles lays out a result unit with files of the given sizes, keyed
// by slash-separated paths relative to the unit directory.
func writeUnitFiles(t *testing.T, resultsDir, unitID string, files map[string]int) {
	t.Helper()

	unitDir := filepath.Join(resultsDir, unitID)
	require.NoError(t, os.MkdirAll(unitDir, 0o755))
	for rel, size := range files {
		p := filepath.Join(unitDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte("y"), size), 0o644))
	}
}
