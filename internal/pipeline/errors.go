// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"errors"
	"fmt"

	"github.com/mia-platform/malbacklog/internal/entity"
)

var (
	// ErrMissingConnector is returned by New when no way of connecting to the database is provided.
	ErrMissingConnector = errors.New("database connector is required")
)

// IncompleteLogError signals a staging log whose fetch phase never completed.
type IncompleteLogError struct {
	Entity entity.Type
	Path   string
}

func (e *IncompleteLogError) Error() string {
	return fmt.Sprintf("staging log %s for %s is not complete: run the fetch phase again or force the load", e.Path, e.Entity)
}
