// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mia-platform/malbacklog/internal/entity"
)

const (
	pendingExtension = ".json"
	logExtension     = ".jsonl"
	completeSuffix   = ".complete"
	loadedSuffix     = ".loaded"
	checkpointSuffix = ".checkpoint"

	dirPermissions  fs.FileMode = 0o755
	filePermissions fs.FileMode = 0o644
)

// PendingPath returns the path of the pending identifiers file of entityType inside dir.
func PendingPath(dir string, entityType entity.Type) string {
	return filepath.Join(dir, entityType.String()+pendingExtension)
}

// LogPath returns the path of the staging log of entityType inside dir.
func LogPath(dir string, entityType entity.Type) string {
	return filepath.Join(dir, entityType.String()+logExtension)
}

func completePath(dir string, entityType entity.Type) string {
	return LogPath(dir, entityType) + completeSuffix
}

func loadedPath(dir string, entityType entity.Type) string {
	return LogPath(dir, entityType) + loadedSuffix
}

func checkpointPath(dir string, entityType entity.Type) string {
	return LogPath(dir, entityType) + checkpointSuffix
}

// Marker is the content of the completion, loaded and checkpoint marker files.
type Marker struct {
	Records int       `json:"records"`
	At      time.Time `json:"at"`
}

// IsComplete reports whether the fetch phase of entityType has gone through all its identifiers.
func IsComplete(dir string, entityType entity.Type) bool {
	return exists(completePath(dir, entityType))
}

// IsLoaded reports whether the staging log of entityType has already been loaded.
func IsLoaded(dir string, entityType entity.Type) bool {
	return exists(loadedPath(dir, entityType))
}

// MarkLoaded records that the staging log of entityType has been consumed by the loader.
func MarkLoaded(dir string, entityType entity.Type, records int) error {
	return writeMarker(loadedPath(dir, entityType), records)
}

// SaveCheckpoint records that the first records valid records of the staging log of entityType
// went through the loader.
func SaveCheckpoint(dir string, entityType entity.Type, records int) error {
	return writeMarker(checkpointPath(dir, entityType), records)
}

// Checkpoint returns the number of records saved by SaveCheckpoint, or zero when the load of
// the staging log of entityType never started.
func Checkpoint(dir string, entityType entity.Type) (int, error) {
	path := checkpointPath(dir, entityType)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading load checkpoint: %w", err)
	}

	var marker Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return 0, fmt.Errorf("parsing load checkpoint in %s: %w", path, err)
	}
	if marker.Records < 0 {
		return 0, fmt.Errorf("invalid load checkpoint in %s: %d records", path, marker.Records)
	}

	return marker.Records, nil
}

// SavePending stores ids as the pending identifiers of entityType. The file is replaced
// atomically so a reader never sees a partial list.
func SavePending(dir string, entityType entity.Type, ids []int64) error {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}

	if ids == nil {
		ids = []int64{}
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	return writeAtomically(PendingPath(dir, entityType), data)
}

// LoadPending reads the pending identifiers of entityType saved by SavePending.
func LoadPending(dir string, entityType entity.Type) ([]int64, error) {
	path := PendingPath(dir, entityType)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pending identifiers: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing pending identifiers in %s: %w", path, err)
	}

	return ids, nil
}

func writeMarker(path string, records int) error {
	data, err := json.Marshal(Marker{Records: records, At: time.Now().UTC()})
	if err != nil {
		return err
	}

	return writeAtomically(path, data)
}

func writeAtomically(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
