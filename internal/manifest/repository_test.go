package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeMapping(t *testing.T, configsDir, batchID, doc string) {
	t.Helper()

	dir := filepath.Join(configsDir, "batch_"+batchID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MappingFileName), []byte(doc), 0o644))
}

func TestRepository_Load(t *testing.T) {
	t.Parallel()

	configsDir := t.TempDir()
	writeMapping(t, configsDir, "20", `{
		"batch_info": {"batch_number": 20, "pair_count": 2},
		"mapping": {
			"000005000016.0_processed.mp4": "image_00001315.jpg",
			"000005000009.0_processed.mp4": "image_00000942.jpg"
		}
	}`)

	repo := NewRepository(configsDir)
	m, err := repo.Load("20")
	require.NoError(t, err)
	require.Equal(t, "20", m.BatchID)
	require.Len(t, m.Entries, 2)
	require.Equal(t, "000005000016", m.Entries[0].VideoID)
}

func TestRepository_LoadMissingManifest(t *testing.T) {
	t.Parallel()

	repo := NewRepository(t.TempDir())
	_, err := repo.Load("99")
	require.ErrorIs(t, err, ErrManifestNotFound)
}

func TestRepository_LoadMalformedManifest(t *testing.T) {
	t.Parallel()

	configsDir := t.TempDir()
	writeMapping(t, configsDir, "5", `{"batch_info": {"batch_number": 5}}`)

	repo := NewRepository(configsDir)
	_, err := repo.Load("5")

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, "5", malformed.BatchID)
}

func TestRepository_ListBatches(t *testing.T) {
	t.Parallel()

	configsDir := t.TempDir()
	writeMapping(t, configsDir, "42", `{"mapping": {}}`)
	writeMapping(t, configsDir, "7", `{"mapping": {}}`)
	writeMapping(t, configsDir, "100", `{"mapping": {}}`)

	// batch dir without a mapping file is not listed
	require.NoError(t, os.MkdirAll(filepath.Join(configsDir, "batch_13"), 0o755))
	// unrelated entries are ignored
	require.NoError(t, os.MkdirAll(filepath.Join(configsDir, "archive"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configsDir, "batch_9"), []byte("not a dir"), 0o644))

	repo := NewRepository(configsDir)
	ids, err := repo.ListBatches()
	require.NoError(t, err)
	require.Equal(t, []string{"100", "42", "7"}, ids)
}

func TestRepository_ListBatchesMissingDir(t *testing.T) {
	t.Parallel()

	repo := NewRepository(filepath.Join(t.TempDir(), "nope"))
	ids, err := repo.ListBatches()
	require.NoError(t, err)
	require.Empty(t, ids)
}
