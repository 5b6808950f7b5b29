package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MappingFileName is the fixed file name of a batch mapping inside its batch
// directory.
const MappingFileName = "video_image_mapping.json"

const batchDirPrefix = "batch_"

// Repository reads batch manifests from a local batch_configs directory laid
// out as <dir>/batch_<id>/video_image_mapping.json.
type Repository struct {
	configsDir string
}

// NewRepository returns a repository rooted at configsDir. The directory does
// not have to exist yet; ListBatches treats a missing root as empty.
func NewRepository(configsDir string) *Repository {
	return &Repository{configsDir: configsDir}
}

// MappingPath returns the path of the mapping file for a batch id.
func (r *Repository) MappingPath(batchID string) string {
	return filepath.Join(r.configsDir, batchDirPrefix+batchID, MappingFileName)
}

// Load reads and validates the manifest for one batch. A missing mapping file
// yields ErrManifestNotFound; a present but invalid one yields a
// MalformedError.
func (r *Repository) Load(batchID string) (*BatchManifest, error) {
	path := r.MappingPath(batchID)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f, batchID)
}

// ListBatches returns the sorted ids of all batches that have a mapping file.
// A missing configs directory is treated as an empty catalog, not an error.
func (r *Repository) ListBatches() ([]string, error) {
	dirEntries, err := os.ReadDir(r.configsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read configs dir %s: %w", r.configsDir, err)
	}

	var ids []string
	for _, entry := range dirEntries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), batchDirPrefix) {
			continue
		}
		id := strings.TrimPrefix(entry.Name(), batchDirPrefix)
		if id == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.configsDir, entry.Name(), MappingFileName)); err != nil {
			continue
		}
		ids = append(ids, id)
	}

	sort.Strings(ids)
	return ids, nil
}
