// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"time"

	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/fetcher"
	"github.com/mia-platform/malbacklog/internal/loader"
)

// Phase is the step a run is executing for an entity type.
type Phase string

const (
	PhaseResolve Phase = "resolve"
	PhaseFetch   Phase = "fetch"
	PhaseLoad    Phase = "load"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
)

// Summary describes the progress of a run for a single entity type.
type Summary struct {
	RunID      string          `json:"runId"`
	Entity     entity.Type     `json:"entity"`
	Phase      Phase           `json:"phase"`
	Production bool            `json:"production"`
	Pending    int             `json:"pending"`
	Fetch      *fetcher.Result `json:"fetch,omitempty"`
	Load       *loader.Result  `json:"load,omitempty"`
	LoadSkip   bool            `json:"loadSkipped,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Observer is notified every time a summary changes.
type Observer interface {
	Observe(summary Summary)
}

type nopObserver struct{}

func (nopObserver) Observe(Summary) {}

// logArgs returns the summary as key/value pairs for structured logging.
func (s Summary) logArgs() []any {
	args := []any{
		"entity", s.Entity.String(),
		"phase", string(s.Phase),
		"pending", s.Pending,
	}

	if s.Fetch != nil {
		args = append(args, "staged", s.Fetch.Staged, "skipped", len(s.Fetch.Skipped))
	}
	if s.Load != nil {
		args = append(args, "loaded", s.Load.Loaded, "failedChunks", s.Load.FailedChunks)
	}
	if s.LoadSkip {
		args = append(args, "loadSkipped", true)
	}
	if s.Error != "" {
		args = append(args, "error", s.Error)
	}

	return args
}
