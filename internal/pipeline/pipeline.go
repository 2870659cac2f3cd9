// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mia-platform/malbacklog/internal/cooldown"
	"github.com/mia-platform/malbacklog/internal/database"
	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/fetcher"
	"github.com/mia-platform/malbacklog/internal/loader"
	"github.com/mia-platform/malbacklog/internal/logger"
	"github.com/mia-platform/malbacklog/internal/pending"
	"github.com/mia-platform/malbacklog/internal/source"
	"github.com/mia-platform/malbacklog/internal/staging"
)

const (
	loggerName = "malbacklog:pipeline"
)

// Connector opens a new connection to the relational store.
type Connector func(ctx context.Context) (*database.DB, error)

// Config holds the settings of a run.
type Config struct {
	// Production disables the sample cap of the resolver.
	Production bool
	// ChunkSize is the number of records committed per transaction.
	ChunkSize int
	// WorkDir contains the pending files and the staging logs.
	WorkDir string
	// Entities are processed in the order of entity.All; empty means every type.
	Entities []entity.Type
	// ForceLoad loads staging logs that are incomplete or already loaded.
	ForceLoad bool
}

// Pipeline runs the ingestion phases for the configured entity types.
type Pipeline struct {
	config   Config
	entities []entity.Type
	connect  Connector
	fetcher  *fetcher.Fetcher
	policy   cooldown.Policy
	observer Observer
	now      func() time.Time

	runID     string
	summaries map[entity.Type]*Summary
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithObserver registers observer for the summary updates.
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// New validates cfg and returns a Pipeline. No I/O is performed.
func New(cfg Config, connect Connector, src source.Source, policy cooldown.Policy, options ...Option) (*Pipeline, error) {
	if connect == nil {
		return nil, ErrMissingConnector
	}

	requested := make([]string, 0, len(cfg.Entities))
	for _, entityType := range cfg.Entities {
		if err := entityType.Validate(); err != nil {
			return nil, err
		}
		requested = append(requested, entityType.String())
	}

	entities, err := entity.ParseList(requested)
	if err != nil {
		return nil, err
	}

	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = loader.DefaultChunkSize
	}

	p := &Pipeline{
		config:    cfg,
		entities:  entities,
		connect:   connect,
		fetcher:   fetcher.New(src, policy),
		policy:    policy,
		observer:  nopObserver{},
		now:       time.Now,
		runID:     uuid.NewString(),
		summaries: make(map[entity.Type]*Summary, len(entities)),
	}

	for _, option := range options {
		option(p)
	}

	return p, nil
}

// RunID returns the identifier attached to the logs and summaries of this pipeline.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Entities returns the entity types processed by the pipeline in order.
func (p *Pipeline) Entities() []entity.Type {
	return append([]entity.Type(nil), p.entities...)
}

// Run resolves the pending identifiers of every entity type, then fetches and loads each type in
// order. Connection failures abort the run; item and chunk failures are only logged.
func (p *Pipeline) Run(ctx context.Context) ([]Summary, error) {
	ctx = p.withLogger(ctx)
	log := logger.FromContext(ctx).WithName(loggerName)
	log.Info("starting run", "entities", p.entities, "production", p.config.Production, "chunkSize", p.config.ChunkSize)

	pendingIDs, err := p.resolve(ctx)
	if err != nil {
		return p.Summaries(), err
	}

	for _, entityType := range p.entities {
		if _, err := p.fetch(ctx, entityType, pendingIDs[entityType]); err != nil {
			return p.Summaries(), err
		}

		if _, err := p.load(ctx, entityType); err != nil {
			return p.Summaries(), err
		}

		p.update(entityType, func(s *Summary) { s.Phase = PhaseDone })
	}

	p.logSummaries(ctx)
	return p.Summaries(), nil
}

// Resolve computes and saves the pending identifiers of every entity type using one connection.
func (p *Pipeline) Resolve(ctx context.Context) (map[entity.Type][]int64, error) {
	ctx = p.withLogger(ctx)

	result, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}

	for _, entityType := range p.entities {
		p.update(entityType, func(s *Summary) { s.Phase = PhaseDone })
	}

	p.logSummaries(ctx)
	return result, nil
}

func (p *Pipeline) resolve(ctx context.Context) (map[entity.Type][]int64, error) {
	for _, entityType := range p.entities {
		p.update(entityType, func(s *Summary) { s.Phase = PhaseResolve })
	}

	db, err := p.connect(ctx)
	if err != nil {
		return nil, p.failAll(err)
	}
	defer db.Close()

	resolver := pending.NewResolver(db, p.config.WorkDir)
	result := make(map[entity.Type][]int64, len(p.entities))
	for _, entityType := range p.entities {
		ids, err := resolver.Resolve(ctx, entityType, p.config.Production)
		if err != nil {
			return nil, p.failAll(err)
		}

		result[entityType] = ids
		p.update(entityType, func(s *Summary) { s.Pending = len(ids) })
	}

	return result, nil
}

// Fetch runs the fetch phase of every entity type from the pending files saved by Resolve.
func (p *Pipeline) Fetch(ctx context.Context) ([]Summary, error) {
	ctx = p.withLogger(ctx)

	for _, entityType := range p.entities {
		ids, err := staging.LoadPending(p.config.WorkDir, entityType)
		if err != nil {
			return p.Summaries(), p.fail(entityType, err)
		}
		p.update(entityType, func(s *Summary) { s.Pending = len(ids) })

		if _, err := p.fetch(ctx, entityType, ids); err != nil {
			return p.Summaries(), err
		}
		p.update(entityType, func(s *Summary) { s.Phase = PhaseDone })
	}

	p.logSummaries(ctx)
	return p.Summaries(), nil
}

// Load runs the load phase of every entity type against the staging logs already on disk.
func (p *Pipeline) Load(ctx context.Context) ([]Summary, error) {
	ctx = p.withLogger(ctx)

	for _, entityType := range p.entities {
		if _, err := p.load(ctx, entityType); err != nil {
			return p.Summaries(), err
		}
		p.update(entityType, func(s *Summary) { s.Phase = PhaseDone })
	}

	p.logSummaries(ctx)
	return p.Summaries(), nil
}

func (p *Pipeline) fetch(ctx context.Context, entityType entity.Type, ids []int64) (fetcher.Result, error) {
	log := logger.FromContext(ctx).WithName(loggerName).With("entity", entityType.String())
	p.update(entityType, func(s *Summary) { s.Phase = PhaseFetch })
	p.policy.Reset()

	writer, err := staging.Create(p.config.WorkDir, entityType)
	if err != nil {
		return fetcher.Result{}, p.fail(entityType, err)
	}
	defer writer.Close()

	log.Info("fetching records", "count", len(ids), "path", writer.Path())
	result, err := p.fetcher.FetchAll(ctx, entityType, ids, writer)
	p.update(entityType, func(s *Summary) { s.Fetch = &result })
	if err != nil {
		return result, p.fail(entityType, err)
	}

	if err := writer.MarkComplete(); err != nil {
		return result, p.fail(entityType, fmt.Errorf("marking staging log as complete: %w", err))
	}

	log.Info("records fetched", "staged", result.Staged, "skipped", len(result.Skipped))
	return result, nil
}

func (p *Pipeline) load(ctx context.Context, entityType entity.Type) (loader.Result, error) {
	log := logger.FromContext(ctx).WithName(loggerName).With("entity", entityType.String())
	p.update(entityType, func(s *Summary) { s.Phase = PhaseLoad })

	if !p.config.ForceLoad {
		if staging.IsLoaded(p.config.WorkDir, entityType) {
			log.Info("staging log already loaded, skipping", "path", staging.LogPath(p.config.WorkDir, entityType))
			p.update(entityType, func(s *Summary) { s.LoadSkip = true })
			return loader.Result{}, nil
		}

		if !staging.IsComplete(p.config.WorkDir, entityType) {
			return loader.Result{}, p.fail(entityType, &IncompleteLogError{
				Entity: entityType,
				Path:   staging.LogPath(p.config.WorkDir, entityType),
			})
		}
	}

	reader, err := staging.Open(p.config.WorkDir, entityType)
	if err != nil {
		return loader.Result{}, p.fail(entityType, err)
	}
	defer reader.Close()

	db, err := p.connect(ctx)
	if err != nil {
		return loader.Result{}, p.fail(entityType, err)
	}
	defer db.Close()

	chunkLoader, err := p.loader(db, entityType)
	if err != nil {
		return loader.Result{}, p.fail(entityType, err)
	}

	result, err := chunkLoader.Load(ctx, reader)
	p.update(entityType, func(s *Summary) { s.Load = &result })
	if err != nil {
		return result, p.fail(entityType, err)
	}

	if err := staging.MarkLoaded(p.config.WorkDir, entityType, result.Loaded); err != nil {
		return result, p.fail(entityType, fmt.Errorf("marking staging log as loaded: %w", err))
	}

	return result, nil
}

// loader returns the chunk loader of entityType. It resumes after the records that went through
// an interrupted load of the same staging log and checkpoints every chunk. ForceLoad always
// starts from the first record.
func (p *Pipeline) loader(db *database.DB, entityType entity.Type) (*loader.Loader, error) {
	resumeFrom := 0
	if !p.config.ForceLoad {
		checkpoint, err := staging.Checkpoint(p.config.WorkDir, entityType)
		if err != nil {
			return nil, err
		}
		resumeFrom = checkpoint
	}

	save := func(records int) error {
		return staging.SaveCheckpoint(p.config.WorkDir, entityType, records)
	}

	return loader.New(db, p.config.ChunkSize, loader.WithCheckpoint(resumeFrom, save)), nil
}

// Summaries returns the current summaries in processing order.
func (p *Pipeline) Summaries() []Summary {
	summaries := make([]Summary, 0, len(p.summaries))
	for _, entityType := range p.entities {
		if summary, ok := p.summaries[entityType]; ok {
			summaries = append(summaries, *summary)
		}
	}
	return summaries
}

func (p *Pipeline) update(entityType entity.Type, change func(*Summary)) {
	summary, ok := p.summaries[entityType]
	if !ok {
		now := p.now()
		summary = &Summary{
			RunID:      p.runID,
			Entity:     entityType,
			Production: p.config.Production,
			StartedAt:  now,
		}
		p.summaries[entityType] = summary
	}

	change(summary)
	summary.UpdatedAt = p.now()
	p.observer.Observe(*summary)
}

func (p *Pipeline) fail(entityType entity.Type, err error) error {
	p.update(entityType, func(s *Summary) {
		s.Phase = PhaseFailed
		s.Error = err.Error()
	})
	return err
}

func (p *Pipeline) failAll(err error) error {
	for _, entityType := range p.entities {
		p.fail(entityType, err)
	}
	return err
}

func (p *Pipeline) withLogger(ctx context.Context) context.Context {
	log := logger.FromContext(ctx)
	return logger.WithContext(ctx, log.With("runId", p.runID))
}

func (p *Pipeline) logSummaries(ctx context.Context) {
	log := logger.FromContext(ctx).WithName(loggerName)
	for _, summary := range p.Summaries() {
		log.Info("run summary", summary.logArgs()...)
	}
}
