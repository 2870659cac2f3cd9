// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/mia-platform/malbacklog/internal/entity"
)

var (
	// ErrNotFound is returned when the remote catalog has no record for the identifier.
	ErrNotFound = errors.New("record not found")
	// ErrRateLimited is returned when the remote catalog rejected the request because of its rate limits.
	ErrRateLimited = errors.New("rate limited")
)

// Source retrieves full records from an external catalog.
// Implementations must be safe to call again for the same identifier on a later run.
type Source interface {
	// FetchRecord returns the full record of the given type and identifier. The returned value
	// is one of the model types of this package.
	FetchRecord(ctx context.Context, entityType entity.Type, id int64) (any, error)
}

// FetchError reports the failure of retrieving a single record.
type FetchError struct {
	Entity entity.Type
	ID     int64
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s %d: %s", e.Entity, e.ID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
