// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"sync"

	"github.com/mia-platform/malbacklog/internal/config"
	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/logger"
	"github.com/mia-platform/malbacklog/internal/pipeline"
	"github.com/mia-platform/malbacklog/internal/server"
	"github.com/mia-platform/malbacklog/internal/source"
)

type phase string

const (
	phaseRun     phase = "run"
	phaseResolve phase = "resolve"
	phaseFetch   phase = "fetch"
	phaseLoad    phase = "load"

	cmdLoggerName = "malbacklog:cmd"
)

// options holds the settings of a single phase command execution.
type options struct {
	phase    phase
	entities []string
	force    bool
	config   *config.Config

	entityTypes  []entity.Type
	sourceGetter func() (source.Source, error)

	lock sync.Mutex
}

// validate checks the configured values and reports invalid setups.
func (o *options) validate() error {
	if err := o.config.Validate(); err != nil {
		return err
	}

	entityTypes, err := entity.ParseList(o.entities)
	if err != nil {
		return err
	}

	o.entityTypes = entityTypes
	return nil
}

// execute builds the pipeline and runs the phase selected by the command.
func (o *options) execute(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	log := logger.FromContext(ctx).WithName(cmdLoggerName)

	policy, err := o.config.Policy()
	if err != nil {
		return err
	}

	src, err := o.sourceGetter()
	if err != nil {
		return err
	}

	serverConfig, err := server.LoadServerConfig()
	if err != nil {
		return err
	}

	var pipelineOptions []pipeline.Option
	var status *server.Status
	if serverConfig.Enabled {
		status = server.NewStatus()
		srv := server.NewServer(ctx, serverConfig, status)
		srv.StartAsync(ctx)
		defer func() {
			if err := srv.Stop(); err != nil {
				log.Warn("stopping status server", "error", err)
			}
		}()
		pipelineOptions = append(pipelineOptions, pipeline.WithObserver(status))
	}

	p, err := pipeline.New(pipeline.Config{
		Production: o.config.Production,
		ChunkSize:  o.config.ChunkSize,
		WorkDir:    o.config.WorkDir,
		Entities:   o.entityTypes,
		ForceLoad:  o.force,
	}, newConnector(o.config), src, policy, pipelineOptions...)
	if err != nil {
		return err
	}

	if status != nil {
		status.MarkReady()
	}

	log.Debug("executing phase", "phase", string(o.phase), "runId", p.RunID())
	switch o.phase {
	case phaseResolve:
		_, err = p.Resolve(ctx)
	case phaseFetch:
		_, err = p.Fetch(ctx)
	case phaseLoad:
		_, err = p.Load(ctx)
	default:
		_, err = p.Run(ctx)
	}

	return err
}
