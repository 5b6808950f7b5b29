package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Ruijian-Zha/azure-sync/internal/config"
)

// Checker verifies that local result units carry all required artifacts.
type Checker struct {
	// Expected lists the artifact paths, relative to a unit directory,
	// that a complete unit must contain.
	Expected []string
	// MinBytes is the smallest size at which an artifact counts as
	// present. Truncated outputs below this threshold count as missing.
	MinBytes int64
	// UnitPrefix selects which subdirectories of a results directory are
	// treated as units.
	UnitPrefix string
}

// NewChecker builds a checker from the transfer configuration.
func NewChecker(cfg *config.Config) *Checker {
	return &Checker{
		Expected:   cfg.Transfer.ExpectedArtifacts,
		MinBytes:   cfg.Transfer.MinArtifactBytes,
		UnitPrefix: cfg.Transfer.UnitPrefix,
	}
}

// CheckRecord is the completeness verdict for one unit.
type CheckRecord struct {
	UnitID   string   `json:"video_id"`
	Expected []string `json:"expected_files"`
	Present  []string `json:"present_files"`
	Missing  []string `json:"missing_files,omitempty"`
}

// Complete reports whether every expected artifact is present.
func (r CheckRecord) Complete() bool {
	return len(r.Missing) == 0
}

// Check examines every unit directory under resultsDir and reports which
// expected artifacts are present at a plausible size. The scan is purely
// local; results are never cached between runs.
func (c *Checker) Check(resultsDir string) ([]CheckRecord, error) {
	units, err := listUnitDirs(resultsDir, c.UnitPrefix)
	if err != nil {
		return nil, err
	}

	records := make([]CheckRecord, 0, len(units))
	for _, unit := range units {
		rec := CheckRecord{UnitID: unit, Expected: c.Expected}
		for _, artifact := range c.Expected {
			p := filepath.Join(resultsDir, unit, filepath.FromSlash(artifact))
			st, err := os.Stat(p)
			if err != nil || st.Size() < c.MinBytes {
				rec.Missing = append(rec.Missing, artifact)
			} else {
				rec.Present = append(rec.Present, artifact)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// CompleteUnits filters the check records down to the ids of complete units,
// preserving order.
func CompleteUnits(records []CheckRecord) []string {
	var ids []string
	for _, rec := range records {
		if rec.Complete() {
			ids = append(ids, rec.UnitID)
		}
	}
	return ids
}

// listUnitDirs returns the sorted names of unit directories under resultsDir.
func listUnitDirs(resultsDir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory %s: %w", resultsDir, err)
	}

	var units []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			units = append(units, entry.Name())
		}
	}
	sort.Strings(units)
	return units, nil
}
