// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pending

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/mia-platform/malbacklog/internal/database"
	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/logger"
	"github.com/mia-platform/malbacklog/internal/staging"
)

const (
	// SampleSize caps the pending identifiers outside of production mode.
	SampleSize = 10

	loggerName = "malbacklog:resolver"
)

// Resolver computes the identifiers present in a catalog table and missing from the backlog.
type Resolver struct {
	db      *database.DB
	workDir string
}

// NewResolver returns a Resolver querying db and saving its results inside workDir.
func NewResolver(db *database.DB, workDir string) *Resolver {
	return &Resolver{
		db:      db,
		workDir: workDir,
	}
}

// Query returns the set-difference query for entityType, ordered by identifier. Outside of
// production mode only the first SampleSize identifiers are selected.
func (r *Resolver) Query(entityType entity.Type, production bool) (*goqu.SelectDataset, error) {
	catalogTable, err := entityType.CatalogTable()
	if err != nil {
		return nil, err
	}

	ingested := r.db.From(r.db.Table(database.BacklogTable)).
		Select(goqu.C("id")).
		Where(
			goqu.C("entity").Eq(entityType.String()),
			goqu.C("id").IsNotNull(),
		)

	query := r.db.From(r.db.Table(catalogTable)).
		Select(goqu.C("id")).
		Distinct().
		Where(
			goqu.C("id").IsNotNull(),
			goqu.C("id").NotIn(ingested),
		).
		Order(goqu.C("id").Asc()).
		Prepared(true)

	if !production {
		query = query.Limit(SampleSize)
	}

	return query, nil
}

// Resolve runs the set-difference query for entityType and saves the result in the work
// directory, where the fetch phase reads it from.
func (r *Resolver) Resolve(ctx context.Context, entityType entity.Type, production bool) ([]int64, error) {
	log := logger.FromContext(ctx).WithName(loggerName).With("entity", entityType.String())

	query, err := r.Query(entityType, production)
	if err != nil {
		return nil, err
	}

	if sql, args, err := query.ToSQL(); err == nil {
		log.Trace("resolving pending identifiers", "query", sql, "args", args)
	}

	var ids []int64
	if err := query.ScanValsContext(ctx, &ids); err != nil {
		return nil, fmt.Errorf("resolving pending %s identifiers: %w", entityType, err)
	}
	if ids == nil {
		ids = []int64{}
	}

	if err := staging.SavePending(r.workDir, entityType, ids); err != nil {
		return nil, fmt.Errorf("saving pending %s identifiers: %w", entityType, err)
	}

	log.Info("pending identifiers resolved", "count", len(ids), "production", production, "path", staging.PendingPath(r.workDir, entityType))
	return ids, nil
}
