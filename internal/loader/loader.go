// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package loader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/doug-martin/goqu/v9"

	"github.com/mia-platform/malbacklog/internal/database"
	"github.com/mia-platform/malbacklog/internal/logger"
	"github.com/mia-platform/malbacklog/internal/staging"
)

const (
	// DefaultChunkSize is the number of records committed in a single transaction.
	DefaultChunkSize = 100

	loggerName = "malbacklog:loader"
)

// RecordReader returns records sequentially until io.EOF.
type RecordReader interface {
	Next() (staging.Record, error)
}

// ChunkInsertError reports a chunk whose transaction has been rolled back.
type ChunkInsertError struct {
	Chunk   int
	FirstID int64
	LastID  int64
	Size    int
	Err     error
}

func (e *ChunkInsertError) Error() string {
	return fmt.Sprintf("inserting chunk %d (ids %d-%d, %d records): %s", e.Chunk, e.FirstID, e.LastID, e.Size, e.Err)
}

func (e *ChunkInsertError) Unwrap() error {
	return e.Err
}

// Result summarizes a load phase.
type Result struct {
	Read         int     `json:"read"`
	Loaded       int     `json:"loaded"`
	Chunks       int     `json:"chunks"`
	FailedChunks int     `json:"failedChunks"`
	FailedIDs    []int64 `json:"failedIds"`
	Malformed    int     `json:"malformed"`
	// Resumed counts the records skipped because a previous load already went through them.
	Resumed int `json:"resumed,omitempty"`
}

// Loader inserts staged records in the backlog table in all-or-nothing chunks.
type Loader struct {
	db        *database.DB
	chunkSize int

	resumeFrom int
	checkpoint func(records int) error
}

// Option customizes a Loader.
type Option func(*Loader)

// WithCheckpoint makes the loader skip the first resumeFrom valid records and call save with
// the number of valid records consumed so far after every chunk, committed or rolled back.
// A save failure stops the load.
func WithCheckpoint(resumeFrom int, save func(records int) error) Option {
	return func(l *Loader) {
		l.resumeFrom = max(resumeFrom, 0)
		l.checkpoint = save
	}
}

// New returns a Loader writing on db. A chunkSize lower than 1 selects DefaultChunkSize.
func New(db *database.DB, chunkSize int, options ...Option) *Loader {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}

	l := &Loader{
		db:        db,
		chunkSize: chunkSize,
	}
	for _, option := range options {
		option(l)
	}

	return l
}

// ChunkSize returns the number of records per transaction.
func (l *Loader) ChunkSize() int {
	return l.chunkSize
}

// Load consumes reader and inserts its records chunk by chunk. A failing chunk is rolled back
// and logged, then loading continues with the next one. Only reading errors and the
// cancellation of ctx stop the load.
func (l *Loader) Load(ctx context.Context, reader RecordReader) (Result, error) {
	log := logger.FromContext(ctx).WithName(loggerName)
	result := Result{FailedIDs: []int64{}}

	consumed := 0
	buffer := make([]staging.Record, 0, l.chunkSize)
	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result.Chunks++
		if err := l.insertChunk(ctx, result.Chunks, buffer); err != nil {
			log.Error("chunk rolled back", "chunk", result.Chunks, "records", len(buffer), "error", err.Error())
			result.FailedChunks++
			for _, record := range buffer {
				result.FailedIDs = append(result.FailedIDs, record.ID)
			}
		} else {
			log.Debug("chunk committed", "chunk", result.Chunks, "records", len(buffer))
			result.Loaded += len(buffer)
		}

		buffer = buffer[:0]
		if l.checkpoint != nil {
			if err := l.checkpoint(consumed); err != nil {
				return fmt.Errorf("saving load checkpoint after chunk %d: %w", result.Chunks, err)
			}
		}
		return nil
	}

	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var malformed *staging.MalformedRecordError
		if errors.As(err, &malformed) {
			log.Warn("ignoring staged record", "line", malformed.Line, "truncated", malformed.Truncated, "error", malformed.Error())
			result.Malformed++
			continue
		}
		if err != nil {
			return result, err
		}

		consumed++
		if consumed <= l.resumeFrom {
			result.Resumed++
			continue
		}

		result.Read++
		buffer = append(buffer, record)
		if len(buffer) == l.chunkSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	if result.Resumed > 0 {
		log.Info("resumed interrupted load", "resumed", result.Resumed)
	}
	log.Info("staging log loaded", "read", result.Read, "loaded", result.Loaded, "chunks", result.Chunks, "failedChunks", result.FailedChunks)
	return result, nil
}

func (l *Loader) insertChunk(ctx context.Context, chunk int, records []staging.Record) error {
	chunkErr := func(err error) error {
		return &ChunkInsertError{
			Chunk:   chunk,
			FirstID: records[0].ID,
			LastID:  records[len(records)-1].ID,
			Size:    len(records),
			Err:     err,
		}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return chunkErr(err)
	}

	table := l.db.Table(database.BacklogTable)
	for _, record := range records {
		_, err := tx.Insert(table).
			Cols("id", "entity", "payload").
			Vals(goqu.Vals{record.ID, record.Entity.String(), record.Payload}).
			Prepared(true).
			Executor().
			ExecContext(ctx)
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, fmt.Errorf("rolling back: %w", rollbackErr))
			}
			return chunkErr(fmt.Errorf("record %d: %w", record.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return chunkErr(fmt.Errorf("committing: %w", err))
	}

	return nil
}
