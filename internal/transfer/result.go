// Package transfer moves batch data between the remote store and local disk:
// manifest-driven pair downloads, result-unit uploads and completeness checks.
package transfer

import "time"

// Status classifies the outcome for one transfer unit.
type Status string

const (
	// StatusOK means every file of the unit landed where it should.
	StatusOK Status = "ok"
	// StatusMissingRemote means a required object does not exist in the store.
	StatusMissingRemote Status = "missing_remote"
	// StatusWriteFailed covers transfer and local filesystem failures.
	StatusWriteFailed Status = "write_failed"
	// StatusSkipped means the unit required no transfer.
	StatusSkipped Status = "skipped"
)

// Result records the outcome for one unit: a video/image pair on download, a
// result directory on upload.
type Result struct {
	ItemID    string
	Status    Status
	LocalPath string
	Files     int
	Bytes     int64
	Err       error
}

// Summary aggregates unit results for one run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Files     int
	Bytes     int64
	Elapsed   time.Duration
}

// Summarize folds results into per-status counts. Bytes and file counts only
// accumulate for units that succeeded or were skipped as already in place.
func Summarize(results []Result, elapsed time.Duration) Summary {
	s := Summary{Total: len(results), Elapsed: elapsed}
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			s.Succeeded++
			s.Files += r.Files
			s.Bytes += r.Bytes
		case StatusSkipped:
			s.Skipped++
			s.Files += r.Files
			s.Bytes += r.Bytes
		default:
			s.Failed++
		}
	}
	return s
}

// SuccessRate returns succeeded/(succeeded+failed) as a percentage, guarding
// against an empty denominator.
func SuccessRate(succeeded, failed int) float64 {
	attempted := succeeded + failed
	if attempted < 1 {
		attempted = 1
	}
	return float64(succeeded) / float64(attempted) * 100
}
