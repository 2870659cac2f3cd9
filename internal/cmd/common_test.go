// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/malbacklog/internal/config"
	"github.com/mia-platform/malbacklog/internal/database"
	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/source/jikan"
)

func mustConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func TestEntityCompletion(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		toComplete         string
		expectedCompletion []string
	}{
		"empty string, complete every type": {
			expectedCompletion: []string{
				"anime\tanime series and movies",
				"manga\tmanga and light novels",
			},
		},
		"partial string, return filtered types": {
			toComplete: "M",
			expectedCompletion: []string{
				"manga\tmanga and light novels",
			},
		},
		"partial wrong string, return no type": {
			toComplete: "x",
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			comps, directive := entityCompletionFunc(nil, nil, test.toComplete)
			assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
			assert.Equal(t, test.expectedCompletion, comps)
		})
	}
}

func TestEntityDescriptions(t *testing.T) {
	t.Parallel()

	for _, entityType := range entity.All() {
		assert.NotEmpty(t, entityDescriptions[entityType], "missing description for %s", entityType)
	}
}

func TestDefaultSource(t *testing.T) {
	t.Run("jikan client", func(t *testing.T) {
		src, err := defaultSource()
		require.NoError(t, err)
		assert.IsType(t, &jikan.Client{}, src)
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		t.Setenv("MAL_API_ENDPOINT", "ftp://api.jikan.moe")
		_, err := defaultSource()
		assert.Error(t, err)
	})
}

func TestConnector(t *testing.T) {
	t.Run("sqlite database gets the schema", func(t *testing.T) {
		t.Setenv("DATABASE_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
		t.Setenv("DATABASE_DRIVER", database.DriverSQLite)
		t.Setenv("DATABASE_DSN", filepath.Join(t.TempDir(), "mal.db"))

		db, err := newConnector(mustConfig(t))(t.Context())
		require.NoError(t, err)
		defer db.Close()

		for _, table := range []string{"anime", "manga", database.BacklogTable} {
			count, err := db.From(db.Table(table)).CountContext(t.Context())
			require.NoError(t, err, table)
			assert.Zero(t, count, table)
		}
	})

	t.Run("missing database configuration", func(t *testing.T) {
		t.Setenv("DATABASE_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

		db, err := newConnector(mustConfig(t))(t.Context())
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("unreachable database", func(t *testing.T) {
		t.Setenv("DATABASE_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
		t.Setenv("DATABASE_DRIVER", database.DriverSQLite)
		t.Setenv("DATABASE_DSN", filepath.Join(t.TempDir(), "missing", "dir", "mal.db"))

		db, err := newConnector(mustConfig(t))(t.Context())
		var connectErr *database.ConnectError
		assert.True(t, errors.As(err, &connectErr))
		assert.Nil(t, db)
	})
}
