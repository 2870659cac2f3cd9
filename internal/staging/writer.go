// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mia-platform/malbacklog/internal/entity"
)

var (
	// ErrClosed is returned when appending to a closed Writer.
	ErrClosed = errors.New("staging log is closed")
)

// Record is a single line of the staging log.
type Record struct {
	ID      int64       `json:"id"`
	Entity  entity.Type `json:"entity"`
	Payload string      `json:"payload"`
}

func (r Record) validate(entityType entity.Type) error {
	if r.ID <= 0 {
		return fmt.Errorf("invalid identifier %d", r.ID)
	}
	if r.Entity != entityType {
		return fmt.Errorf("record %d has entity %q, expected %q", r.ID, r.Entity, entityType)
	}
	if r.Payload == "" {
		return fmt.Errorf("record %d has an empty payload", r.ID)
	}
	return nil
}

// Writer appends records to the staging log of a single entity type.
type Writer struct {
	dir        string
	entityType entity.Type

	lock  sync.Mutex
	file  *os.File
	count int
}

// Create truncates the staging log of entityType in dir and returns a Writer for it.
// Markers left by a previous run are removed.
func Create(dir string, entityType entity.Type) (*Writer, error) {
	if err := entityType.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}

	for _, marker := range []string{completePath(dir, entityType), loadedPath(dir, entityType), checkpointPath(dir, entityType)} {
		if err := removeIfExists(marker); err != nil {
			return nil, fmt.Errorf("removing stale marker: %w", err)
		}
	}

	file, err := os.OpenFile(LogPath(dir, entityType), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("creating staging log: %w", err)
	}

	return &Writer{
		dir:        dir,
		entityType: entityType,
		file:       file,
	}, nil
}

// Append writes record as a new line and syncs it to disk before returning.
func (w *Writer) Append(record Record) error {
	if err := record.validate(w.entityType); err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.file == nil {
		return ErrClosed
	}

	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("appending record %d: %w", record.ID, err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing record %d: %w", record.ID, err)
	}

	w.count++
	return nil
}

// Count returns how many records have been appended.
func (w *Writer) Count() int {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.count
}

// Path returns the path of the staging log.
func (w *Writer) Path() string {
	return LogPath(w.dir, w.entityType)
}

// MarkComplete closes the writer and records that the fetch phase has ended.
func (w *Writer) MarkComplete() error {
	if err := w.Close(); err != nil {
		return err
	}

	return writeMarker(completePath(w.dir, w.entityType), w.Count())
}

// Close closes the underlying file. It is safe to call it more than once.
func (w *Writer) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil
	return err
}
