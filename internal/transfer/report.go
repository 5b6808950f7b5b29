package transfer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DownloadReportName is the file written inside the batch output directory.
const DownloadReportName = "download_report.json"

// DownloadReport is the JSON summary written next to downloaded batch data.
type DownloadReport struct {
	BatchID         string  `json:"batch_id"`
	TotalRequested  int     `json:"total_requested"`
	Downloaded      int     `json:"downloaded"`
	Failed          int     `json:"failed"`
	Skipped         int     `json:"skipped"`
	SuccessRate     float64 `json:"success_rate"`
	TotalSizeMB     float64 `json:"total_size_mb"`
	ElapsedTimeSec  float64 `json:"elapsed_time_sec"`
	OutputDirectory string  `json:"output_directory"`
}

// NewDownloadReport folds pair results into a report. Pairs skipped because
// the local copy was already current count toward the success rate and total
// size.
func NewDownloadReport(batchID, outputDir string, requested int, results []Result, elapsed time.Duration) *DownloadReport {
	s := Summarize(results, elapsed)
	return &DownloadReport{
		BatchID:         batchID,
		TotalRequested:  requested,
		Downloaded:      s.Succeeded,
		Failed:          s.Failed,
		Skipped:         s.Skipped,
		SuccessRate:     SuccessRate(s.Succeeded+s.Skipped, s.Failed),
		TotalSizeMB:     megabytes(s.Bytes),
		ElapsedTimeSec:  elapsed.Seconds(),
		OutputDirectory: outputDir,
	}
}

// Write saves the report as download_report.json inside the batch output
// directory and returns the path.
func (r *DownloadReport) Write() (string, error) {
	return writeReport(filepath.Join(r.OutputDirectory, DownloadReportName), r)
}

// UploadReport is the JSON summary written into the results directory after
// an upload run.
type UploadReport struct {
	BatchID            string  `json:"batch_id"`
	TotalVideoDirs     int     `json:"total_video_dirs"`
	UploadedVideos     int     `json:"uploaded_videos"`
	FailedVideos       int     `json:"failed_videos"`
	SkippedVideos      int     `json:"skipped_videos"`
	SuccessRate        float64 `json:"success_rate"`
	TotalFilesUploaded int     `json:"total_files_uploaded"`
	TotalSizeMB        float64 `json:"total_size_mb"`
	ElapsedTimeSec     float64 `json:"elapsed_time_sec"`
	ResultsDirectory   string  `json:"results_directory"`
	AzureDestination   string  `json:"azure_destination"`
}

// NewUploadReport folds unit results into a report. Skipped units (empty or
// incomplete) stay out of the success rate.
func NewUploadReport(batchID, resultsDir, destination string, requested int, results []Result, elapsed time.Duration) *UploadReport {
	s := Summarize(results, elapsed)
	return &UploadReport{
		BatchID:            batchID,
		TotalVideoDirs:     requested,
		UploadedVideos:     s.Succeeded,
		FailedVideos:       s.Failed,
		SkippedVideos:      s.Skipped,
		SuccessRate:        SuccessRate(s.Succeeded, s.Failed),
		TotalFilesUploaded: s.Files,
		TotalSizeMB:        megabytes(s.Bytes),
		ElapsedTimeSec:     elapsed.Seconds(),
		ResultsDirectory:   resultsDir,
		AzureDestination:   destination,
	}
}

// Write saves the report as upload_report_batch_<id>.json inside the results
// directory and returns the path.
func (r *UploadReport) Write() (string, error) {
	name := fmt.Sprintf("upload_report_batch_%s.json", r.BatchID)
	return writeReport(filepath.Join(r.ResultsDirectory, name), r)
}

func megabytes(bytes int64) float64 {
	return float64(bytes) / (1 << 20)
}

func writeReport(path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}
