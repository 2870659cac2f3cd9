// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"sync"

	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/pipeline"
)

var _ pipeline.Observer = &Status{}

// Status keeps the latest summary of every entity type of a run. It is safe for
// concurrent use by the pipeline and the HTTP handlers.
type Status struct {
	lock      sync.RWMutex
	ready     bool
	summaries map[entity.Type]pipeline.Summary
}

func NewStatus() *Status {
	return &Status{
		summaries: make(map[entity.Type]pipeline.Summary),
	}
}

// Observe stores summary as the latest one for its entity type.
func (s *Status) Observe(summary pipeline.Summary) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.summaries[summary.Entity] = summary
}

// MarkReady flags the run as started.
func (s *Status) MarkReady() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.ready = true
}

func (s *Status) Ready() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.ready
}

// Summaries returns a copy of the stored summaries in entity type order.
func (s *Status) Summaries() []pipeline.Summary {
	s.lock.RLock()
	defer s.lock.RUnlock()

	summaries := make([]pipeline.Summary, 0, len(s.summaries))
	for _, t := range entity.All() {
		if summary, ok := s.summaries[t]; ok {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}
