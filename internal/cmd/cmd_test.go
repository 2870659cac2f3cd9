// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/malbacklog/internal/database"
	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/logger"
	"github.com/mia-platform/malbacklog/internal/pipeline"
	"github.com/mia-platform/malbacklog/internal/source"
	sourcefake "github.com/mia-platform/malbacklog/internal/source/fake"
	"github.com/mia-platform/malbacklog/internal/staging"
)

type testEnv struct {
	dbPath  string
	workDir string
	source  *sourcefake.Source
}

// setupTestEnv points the configuration to a temporary SQLite database seeded with catalog,
// and replaces the remote source with a fake one.
func setupTestEnv(t *testing.T, catalog map[entity.Type][]int64) *testEnv {
	t.Helper()

	env := &testEnv{
		dbPath:  filepath.Join(t.TempDir(), "mal.db"),
		workDir: filepath.Join(t.TempDir(), "work"),
		source:  sourcefake.NewSource(t),
	}

	t.Setenv("WORK_DIR", env.workDir)
	t.Setenv("FETCH_COOLDOWN", "0s")
	t.Setenv("DATABASE_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DATABASE_DRIVER", database.DriverSQLite)
	t.Setenv("DATABASE_DSN", env.dbPath)
	t.Setenv("STATUS_SERVER_ENABLED", "false")

	previous := sourceGetter
	sourceGetter = func() (source.Source, error) { return env.source, nil }
	t.Cleanup(func() { sourceGetter = previous })

	db := env.open(t)
	defer db.Close()
	for entityType, ids := range catalog {
		table, err := entityType.CatalogTable()
		require.NoError(t, err)
		for _, id := range ids {
			_, err := db.Insert(db.Table(table)).Rows(goqu.Record{"id": id}).Executor().ExecContext(t.Context())
			require.NoError(t, err)
		}
	}

	return env
}

func (e *testEnv) open(t *testing.T) *database.DB {
	t.Helper()

	db, err := newConnector(mustConfig(t))(t.Context())
	require.NoError(t, err)
	return db
}

func (e *testEnv) backlog(t *testing.T, entityType entity.Type) []int64 {
	t.Helper()

	db := e.open(t)
	defer db.Close()

	var ids []int64
	err := db.From(db.Table(database.BacklogTable)).
		Select(goqu.C("id")).
		Where(goqu.C("entity").Eq(entityType.String())).
		Order(goqu.C("id").Asc()).
		ScanValsContext(t.Context(), &ids)
	require.NoError(t, err)
	return ids
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	errBuffer := new(bytes.Buffer)
	outBuffer := new(bytes.Buffer)
	cmd.SetOut(outBuffer)
	cmd.SetErr(errBuffer)
	cmd.SetUsageTemplate("usage string")
	cmd.SetArgs(args)

	log := logger.NewLogger(new(bytes.Buffer))
	err := cmd.ExecuteContext(logger.WithContext(t.Context(), log))
	return outBuffer.String(), errBuffer.String(), err
}

func TestRunCmd(t *testing.T) {
	env := setupTestEnv(t, map[entity.Type][]int64{
		entity.Anime: {1, 2, 3},
		entity.Manga: {7},
	})

	stdout, stderr, err := execute(t, RunCmd(), "--prod")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)

	assert.Equal(t, []int64{1, 2, 3}, env.backlog(t, entity.Anime))
	assert.Equal(t, []int64{7}, env.backlog(t, entity.Manga))
	assert.Len(t, env.source.Calls(), 4)

	_, _, err = execute(t, RunCmd(), "--prod")
	require.NoError(t, err)
	assert.Len(t, env.source.Calls(), 4, "a second run finds nothing pending")
}

func TestRunCmdSingleEntity(t *testing.T) {
	env := setupTestEnv(t, map[entity.Type][]int64{
		entity.Anime: {1},
		entity.Manga: {7},
	})

	_, _, err := execute(t, RunCmd(), "--entity", "MANGA", "--chunk-size", "1")
	require.NoError(t, err)
	assert.Empty(t, env.backlog(t, entity.Anime))
	assert.Equal(t, []int64{7}, env.backlog(t, entity.Manga))
	assert.Equal(t, []sourcefake.Call{{Entity: entity.Manga, ID: 7}}, env.source.Calls())
}

func TestPhaseCmds(t *testing.T) {
	env := setupTestEnv(t, map[entity.Type][]int64{entity.Anime: {4, 5}})

	_, _, err := execute(t, ResolveCmd(), "-e", "anime", "--prod")
	require.NoError(t, err)
	ids, err := staging.LoadPending(env.workDir, entity.Anime)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, ids)
	assert.Empty(t, env.source.Calls())

	_, stderr, err := execute(t, LoadCmd(), "-e", "anime")
	var incomplete *pipeline.IncompleteLogError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, err.Error()+"\n", stderr)

	_, _, err = execute(t, FetchCmd(), "-e", "anime")
	require.NoError(t, err)
	assert.Len(t, env.source.Calls(), 2)
	assert.Empty(t, env.backlog(t, entity.Anime))

	_, _, err = execute(t, LoadCmd(), "-e", "anime")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, env.backlog(t, entity.Anime))

	_, _, err = execute(t, LoadCmd(), "-e", "anime", "--force")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 4, 5, 5}, env.backlog(t, entity.Anime), "a forced load inserts the records again")
}

func TestCmdErrors(t *testing.T) {
	testCases := map[string]struct {
		cmd                  func() *cobra.Command
		args                 []string
		env                  map[string]string
		expectedErrorMessage string
		expectedUsage        bool
	}{
		"unsupported entity prints usage": {
			cmd:                  RunCmd,
			args:                 []string{"--entity", "novel"},
			expectedErrorMessage: (&entity.UnsupportedTypeError{Type: "novel"}).Error() + "\n",
			expectedUsage:        true,
		},
		"positional arguments print usage": {
			cmd:           ResolveCmd,
			args:          []string{"anime"},
			expectedUsage: true,
		},
		"invalid chunk size flag": {
			cmd:                  LoadCmd,
			args:                 []string{"--chunk-size", "0"},
			expectedErrorMessage: "CHUNK_SIZE must be greater than zero, got 0\n",
		},
		"required env file is missing": {
			cmd:  FetchCmd,
			args: []string{"--env-file", filepath.Join("testdata", "missing.env")},
		},
		"invalid status server configuration": {
			cmd:  FetchCmd,
			env:  map[string]string{"HTTP_PORT": "0"},
			args: []string{},
		},
		"force is only available to load": {
			cmd:           FetchCmd,
			args:          []string{"--force"},
			expectedUsage: false,
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			setupTestEnv(t, nil)
			for key, value := range test.env {
				t.Setenv(key, value)
			}

			stdout, stderr, err := execute(t, test.cmd(), test.args...)
			require.Error(t, err)
			if test.expectedErrorMessage != "" {
				assert.Equal(t, test.expectedErrorMessage, stderr)
			}

			if test.expectedUsage {
				assert.Equal(t, "usage string", stdout)
			} else {
				assert.Empty(t, stdout)
			}
		})
	}
}
