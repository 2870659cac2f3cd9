// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package staging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mia-platform/malbacklog/internal/entity"
)

// MalformedRecordError reports a line of the staging log that cannot be decoded.
// Truncated is true when the line is the last one and is missing its terminator, which
// happens when the process is killed while appending.
type MalformedRecordError struct {
	Line      int
	Truncated bool
	Err       error
}

func (e *MalformedRecordError) Error() string {
	if e.Truncated {
		return fmt.Sprintf("truncated record at line %d: %s", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed record at line %d: %s", e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Reader reads the staging log of a single entity type sequentially.
type Reader struct {
	entityType entity.Type
	path       string

	file   *os.File
	reader *bufio.Reader
	line   int
}

// Open returns a Reader positioned at the start of the staging log of entityType in dir.
func Open(dir string, entityType entity.Type) (*Reader, error) {
	if err := entityType.Validate(); err != nil {
		return nil, err
	}

	path := LogPath(dir, entityType)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening staging log: %w", err)
	}

	return &Reader{
		entityType: entityType,
		path:       path,
		file:       file,
		reader:     bufio.NewReader(file),
	}, nil
}

// Entity returns the entity type of the records in the log.
func (r *Reader) Entity() entity.Type {
	return r.entityType
}

// Path returns the path of the staging log.
func (r *Reader) Path() string {
	return r.path
}

// Next returns the next record of the log, or io.EOF once the log is exhausted.
// A *MalformedRecordError only affects the returned line and reading can continue.
func (r *Reader) Next() (Record, error) {
	for {
		line, readErr := r.reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return Record{}, fmt.Errorf("reading staging log: %w", readErr)
		}

		truncated := errors.Is(readErr, io.EOF)
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if truncated {
				return Record{}, io.EOF
			}
			r.line++
			continue
		}
		r.line++

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return Record{}, &MalformedRecordError{Line: r.line, Truncated: truncated, Err: err}
		}

		if err := record.validate(r.entityType); err != nil {
			return Record{}, &MalformedRecordError{Line: r.line, Err: err}
		}

		return record, nil
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
