// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/source"
)

func TestFakeSource(t *testing.T) {
	t.Parallel()

	custom := map[string]any{"id": 7}
	src := NewSource(t).
		WithRecord(entity.Manga, 7, custom).
		WithFailure(entity.Anime, 3, source.ErrNotFound)

	record, err := src.FetchRecord(t.Context(), entity.Anime, 1)
	require.NoError(t, err)
	anime, ok := record.(*source.Anime)
	require.True(t, ok)
	assert.Equal(t, int64(1), anime.ID)

	record, err = src.FetchRecord(t.Context(), entity.Manga, 7)
	require.NoError(t, err)
	assert.Equal(t, custom, record)

	record, err = src.FetchRecord(t.Context(), entity.Anime, 3)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, source.ErrNotFound)

	record, err = src.FetchRecord(t.Context(), entity.Type("character"), 1)
	assert.Nil(t, record)
	assert.Error(t, err)

	assert.Equal(t, []Call{
		{Entity: entity.Anime, ID: 1},
		{Entity: entity.Manga, ID: 7},
		{Entity: entity.Anime, ID: 3},
		{Entity: entity.Type("character"), ID: 1},
	}, src.Calls())
}

func TestFakeSourceCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	record, err := NewSource(t).FetchRecord(ctx, entity.Anime, 1)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, context.Canceled)
}
