// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/source"
)

var _ source.Source = &Source{}

// Call records a single FetchRecord invocation.
type Call struct {
	Entity entity.Type
	ID     int64
}

// Source is a deterministic in-memory source.Source. Identifiers without an explicit record or
// failure return a minimal model of the requested type.
type Source struct {
	tb testing.TB

	lock     sync.Mutex
	records  map[Call]any
	failures map[Call]error
	calls    []Call
}

// NewSource returns an empty fake source.
func NewSource(tb testing.TB) *Source {
	tb.Helper()

	return &Source{
		tb:       tb,
		records:  make(map[Call]any),
		failures: make(map[Call]error),
	}
}

// WithRecord makes the source return record for the given identifier.
func (s *Source) WithRecord(entityType entity.Type, id int64, record any) *Source {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.records[Call{Entity: entityType, ID: id}] = record
	return s
}

// WithFailure makes the source fail with err for the given identifier.
func (s *Source) WithFailure(entityType entity.Type, id int64, err error) *Source {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.failures[Call{Entity: entityType, ID: id}] = err
	return s
}

// FetchRecord implements source.Source.
func (s *Source) FetchRecord(ctx context.Context, entityType entity.Type, id int64) (any, error) {
	s.tb.Helper()

	s.lock.Lock()
	defer s.lock.Unlock()

	call := Call{Entity: entityType, ID: id}
	s.calls = append(s.calls, call)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err, ok := s.failures[call]; ok {
		return nil, &source.FetchError{Entity: entityType, ID: id, Err: err}
	}

	if record, ok := s.records[call]; ok {
		return record, nil
	}

	return defaultRecord(entityType, id)
}

// Calls returns the invocations received so far in order.
func (s *Source) Calls() []Call {
	s.lock.Lock()
	defer s.lock.Unlock()

	calls := make([]Call, len(s.calls))
	copy(calls, s.calls)
	return calls
}

func defaultRecord(entityType entity.Type, id int64) (any, error) {
	work := source.Work{
		ID:        id,
		Genres:    source.NewSet[string](),
		Themes:    source.NewSet[string](),
		FetchedAt: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	switch entityType {
	case entity.Anime:
		return &source.Anime{Work: work}, nil
	case entity.Manga:
		return &source.Manga{Work: work}, nil
	default:
		return nil, entityType.Validate()
	}
}
