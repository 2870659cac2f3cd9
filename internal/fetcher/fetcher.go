// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/mia-platform/malbacklog/internal/cooldown"
	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/logger"
	"github.com/mia-platform/malbacklog/internal/serializer"
	"github.com/mia-platform/malbacklog/internal/source"
	"github.com/mia-platform/malbacklog/internal/staging"
)

const (
	loggerName = "malbacklog:fetcher"
)

// Appender receives every record fetched successfully.
type Appender interface {
	Append(record staging.Record) error
}

// Result summarizes a fetch phase.
type Result struct {
	Requested int     `json:"requested"`
	Staged    int     `json:"staged"`
	Skipped   []int64 `json:"skipped"`
}

// Fetcher retrieves the full records of pending identifiers one at a time.
type Fetcher struct {
	source source.Source
	policy cooldown.Policy
}

// New returns a Fetcher reading from src and cooling down with policy after every failure.
func New(src source.Source, policy cooldown.Policy) *Fetcher {
	return &Fetcher{
		source: src,
		policy: policy,
	}
}

// Records returns the lazy sequence of the records of ids that could be fetched and serialized.
// Identifiers that fail are logged and skipped without being retried.
func (f *Fetcher) Records(ctx context.Context, entityType entity.Type, ids []int64) iter.Seq[staging.Record] {
	return f.records(ctx, entityType, ids, func(int64) {}, func(error) {})
}

func (f *Fetcher) records(ctx context.Context, entityType entity.Type, ids []int64, skipped func(id int64), stopped func(err error)) iter.Seq[staging.Record] {
	return func(yield func(staging.Record) bool) {
		log := logger.FromContext(ctx).WithName(loggerName).With("entity", entityType.String())
		if err := entityType.Validate(); err != nil {
			log.Error("cannot fetch records", "error", err)
			return
		}

		for position, id := range ids {
			if ctx.Err() != nil {
				return
			}

			record, err := f.fetch(ctx, entityType, id)
			if err != nil {
				log.Error("skipping record", "id", id, "position", position+1, "total", len(ids), "error", err.Error())
				skipped(id)
				if err := f.policy.Wait(ctx); err != nil {
					stopped(err)
					return
				}
				continue
			}

			f.policy.Reset()
			log.Debug("record fetched", "id", id, "position", position+1, "total", len(ids))
			if !yield(record) {
				return
			}
		}
	}
}

// fetch retrieves and serializes a single record so that serialization failures are handled
// the same way as network ones.
func (f *Fetcher) fetch(ctx context.Context, entityType entity.Type, id int64) (staging.Record, error) {
	value, err := f.source.FetchRecord(ctx, entityType, id)
	if err != nil {
		return staging.Record{}, err
	}

	payload, err := serializer.Marshal(value)
	if err != nil {
		return staging.Record{}, &source.FetchError{Entity: entityType, ID: id, Err: err}
	}

	return staging.Record{
		ID:      id,
		Entity:  entityType,
		Payload: payload,
	}, nil
}

// FetchAll streams the records of ids into appender. A failing appender stops the phase, as the
// record could not be made durable; per identifier failures never do.
func (f *Fetcher) FetchAll(ctx context.Context, entityType entity.Type, ids []int64, appender Appender) (Result, error) {
	result := Result{Requested: len(ids), Skipped: []int64{}}
	if err := entityType.Validate(); err != nil {
		return result, err
	}

	var stopErr error
	skip := func(id int64) { result.Skipped = append(result.Skipped, id) }
	stop := func(err error) { stopErr = err }
	for record := range f.records(ctx, entityType, ids, skip, stop) {
		if err := appender.Append(record); err != nil {
			stopErr = fmt.Errorf("staging record %d: %w", record.ID, err)
			break
		}
		result.Staged++
	}

	if stopErr != nil {
		return result, stopErr
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	return result, nil
}

// IsInterrupted reports whether err comes from the cancellation of the phase.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
