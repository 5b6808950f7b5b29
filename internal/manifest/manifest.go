// Package manifest loads the per-batch video/image mapping files that drive
// batch downloads. A manifest is a static JSON record list; nothing in this
// package talks to the remote store or writes to disk.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrManifestNotFound indicates that no mapping file exists for the requested
// batch id.
var ErrManifestNotFound = errors.New("batch manifest not found")

// MalformedError reports a manifest that exists but fails schema validation.
type MalformedError struct {
	BatchID string
	Reason  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("manifest for batch %s is malformed: %s", e.BatchID, e.Reason)
}

// processedVideoSuffix is the canonical suffix of processed video files in the
// raw source prefix; stripping it yields the unit id used for local layout and
// result directories.
const processedVideoSuffix = ".0_processed.mp4"

// PairRecord maps one video file to its reference image.
type PairRecord struct {
	// VideoFile is the manifest key, e.g. "000005000016.0_processed.mp4".
	VideoFile string
	// ImageFile is the mapped reference image, e.g. "image_00001315.jpg".
	ImageFile string
	// VideoID is VideoFile with the processed-video suffix stripped.
	VideoID string
}

// BatchInfo carries the optional metadata block of a mapping file.
type BatchInfo struct {
	BatchNumber int `json:"batch_number"`
	PairCount   int `json:"pair_count"`
}

// BatchManifest is the loaded mapping for one batch. Entries preserve the
// order of the mapping file so that limited runs select a stable prefix.
type BatchManifest struct {
	BatchID string
	Info    BatchInfo
	Entries []PairRecord
}

// Parse reads a video_image_mapping.json document. The "mapping" object is
// walked token by token so that entry order survives decoding, and the schema
// is validated up front: a missing mapping block, empty file names, or
// duplicate keys all yield a MalformedError.
func Parse(r io.Reader, batchID string) (*BatchManifest, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &MalformedError{BatchID: batchID, Reason: "top-level value must be an object"}
	}

	m := &BatchManifest{BatchID: batchID}
	sawMapping := false

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
		key, _ := keyTok.(string)

		switch key {
		case "mapping":
			entries, err := decodeMapping(dec, batchID)
			if err != nil {
				return nil, err
			}
			m.Entries = entries
			sawMapping = true
		case "batch_info":
			if err := dec.Decode(&m.Info); err != nil {
				return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("invalid batch_info: %v", err)}
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("invalid JSON: %v", err)}
			}
		}
	}

	// closing brace, then nothing else
	if _, err := dec.Token(); err != nil {
		return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &MalformedError{BatchID: batchID, Reason: "trailing data after manifest object"}
	}

	if !sawMapping {
		return nil, &MalformedError{BatchID: batchID, Reason: "missing 'mapping' key"}
	}

	return m, nil
}

// decodeMapping walks the mapping object in document order.
func decodeMapping(dec *json.Decoder, batchID string) ([]PairRecord, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("invalid mapping: %v", err)}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &MalformedError{BatchID: batchID, Reason: "'mapping' must be an object"}
	}

	var entries []PairRecord
	seen := make(map[string]struct{})
	seenIDs := make(map[string]string)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("invalid mapping: %v", err)}
		}
		videoFile, _ := keyTok.(string)
		if strings.TrimSpace(videoFile) == "" {
			return nil, &MalformedError{BatchID: batchID, Reason: "mapping contains an empty video file name"}
		}
		if _, dup := seen[videoFile]; dup {
			return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("duplicate mapping key %q", videoFile)}
		}
		seen[videoFile] = struct{}{}

		var imageFile string
		if err := dec.Decode(&imageFile); err != nil {
			return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("mapping value for %q must be a string", videoFile)}
		}
		if strings.TrimSpace(imageFile) == "" {
			return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("empty image file for %q", videoFile)}
		}

		// distinct file names must not collapse into one unit directory
		id := unitID(videoFile)
		if other, dup := seenIDs[id]; dup {
			return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("video id %q derived from both %q and %q", id, other, videoFile)}
		}
		seenIDs[id] = videoFile

		entries = append(entries, PairRecord{
			VideoFile: videoFile,
			ImageFile: imageFile,
			VideoID:   id,
		})
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, &MalformedError{BatchID: batchID, Reason: fmt.Sprintf("invalid mapping: %v", err)}
	}

	return entries, nil
}

// unitID derives the unit id for a video file name.
func unitID(videoFile string) string {
	if id := strings.TrimSuffix(videoFile, processedVideoSuffix); id != videoFile {
		return id
	}
	return strings.TrimSuffix(videoFile, filepath.Ext(videoFile))
}
