// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/malbacklog/internal/cooldown"
	"github.com/mia-platform/malbacklog/internal/database"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, &Config{
			Production:         false,
			ChunkSize:          100,
			WorkDir:            "tmp",
			FetchCooldown:      4 * time.Second,
			CooldownPolicy:     cooldown.FixedPolicy,
			CooldownMax:        time.Minute,
			DatabaseConfigPath: "config/database.yaml",
		}, cfg)
	})

	t.Run("custom values", func(t *testing.T) {
		t.Setenv("PROD", "true")
		t.Setenv("CHUNK_SIZE", "2")
		t.Setenv("WORK_DIR", "/var/lib/malbacklog")
		t.Setenv("FETCH_COOLDOWN", "500ms")
		t.Setenv("COOLDOWN_POLICY", "exponential")
		t.Setenv("COOLDOWN_MAX", "30s")
		t.Setenv("DATABASE_DSN", "postgres://localhost/mal")

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.True(t, cfg.Production)
		assert.Equal(t, 2, cfg.ChunkSize)
		assert.Equal(t, "/var/lib/malbacklog", cfg.WorkDir)
		assert.Equal(t, 500*time.Millisecond, cfg.FetchCooldown)
		assert.Equal(t, 30*time.Second, cfg.CooldownMax)
		assert.Equal(t, "postgres://localhost/mal", cfg.DatabaseDSN)

		policy, err := cfg.Policy()
		require.NoError(t, err)
		assert.IsType(t, &cooldown.Exponential{}, policy)
	})

	t.Run("unparsable value", func(t *testing.T) {
		t.Setenv("CHUNK_SIZE", "a lot")
		cfg, err := FromEnv()
		assert.ErrorIs(t, err, ErrParsing)
		assert.Nil(t, cfg)
	})

	t.Run("invalid chunk size", func(t *testing.T) {
		t.Setenv("CHUNK_SIZE", "0")
		cfg, err := FromEnv()
		assert.EqualError(t, err, "CHUNK_SIZE must be greater than zero, got 0")
		assert.Nil(t, cfg)
	})

	t.Run("negative cooldown", func(t *testing.T) {
		t.Setenv("FETCH_COOLDOWN", "-1s")
		cfg, err := FromEnv()
		assert.EqualError(t, err, "FETCH_COOLDOWN must not be negative, got -1s")
		assert.Nil(t, cfg)
	})

	t.Run("unknown cooldown policy", func(t *testing.T) {
		t.Setenv("COOLDOWN_POLICY", "random")
		cfg, err := FromEnv()
		var unknown *cooldown.UnknownPolicyError
		assert.ErrorAs(t, err, &unknown)
		assert.Nil(t, cfg)
	})
}

func TestNewDatabaseConfigFromPath(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		path          string
		expected      database.Config
		expectedError error
		errorContains string
	}{
		"postgres parameters": {
			path: filepath.Join("testdata", "database.yaml"),
			expected: database.Config{
				Host:     "localhost",
				Port:     5432,
				User:     "mal",
				Password: "secret",
				DBName:   "mal",
				SSLMode:  "disable",
			},
		},
		"sqlite file": {
			path:     filepath.Join("testdata", "sqlite.yaml"),
			expected: database.Config{Driver: "sqlite", DBName: "tmp/dev.db"},
		},
		"unknown field": {
			path:          filepath.Join("testdata", "unknown-field.yaml"),
			expectedError: ErrParsing,
			errorContains: "field database not found",
		},
		"unknown section": {
			path:          filepath.Join("testdata", "missing-section.yaml"),
			expectedError: ErrParsing,
			errorContains: "field mysql not found",
		},
		"empty section": {
			path:          filepath.Join("testdata", "null-section.yaml"),
			expectedError: ErrParsing,
			errorContains: "missing postgresql section",
		},
		"empty file": {
			path:          filepath.Join("testdata", "empty.yaml"),
			expectedError: ErrParsing,
			errorContains: "file is empty",
		},
		"missing file": {
			path:          filepath.Join("testdata", "missing.yaml"),
			expectedError: syscall.ENOENT,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dbConfig, err := NewDatabaseConfigFromPath(test.path)
			if test.expectedError != nil {
				assert.ErrorIs(t, err, test.expectedError)
				if test.errorContains != "" {
					assert.ErrorContains(t, err, test.errorContains)
				}
				assert.Empty(t, dbConfig)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expected, dbConfig)
		})
	}
}

func TestDatabase(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		config        Config
		expected      database.Config
		errorContains string
	}{
		"file with default schema": {
			config: Config{DatabaseConfigPath: filepath.Join("testdata", "database.yaml")},
			expected: database.Config{
				Host:     "localhost",
				Port:     5432,
				User:     "mal",
				Password: "secret",
				DBName:   "mal",
				SSLMode:  "disable",
				Schema:   "public",
			},
		},
		"dsn without file": {
			config: Config{
				DatabaseConfigPath: filepath.Join("testdata", "missing.yaml"),
				DatabaseDSN:        "postgres://localhost/mal",
				DatabaseDriver:     "postgres",
			},
			expected: database.Config{Driver: "postgres", DSN: "postgres://localhost/mal", Schema: "public"},
		},
		"overrides on sqlite file": {
			config: Config{
				DatabaseConfigPath: filepath.Join("testdata", "sqlite.yaml"),
				DatabaseDSN:        "file:other.db",
			},
			expected: database.Config{Driver: "sqlite", DBName: "tmp/dev.db", DSN: "file:other.db"},
		},
		"missing file without dsn": {
			config:        Config{DatabaseConfigPath: filepath.Join("testdata", "missing.yaml")},
			errorContains: "no such file or directory",
		},
		"invalid driver override": {
			config: Config{
				DatabaseConfigPath: filepath.Join("testdata", "database.yaml"),
				DatabaseDriver:     "mssql",
			},
			errorContains: `unsupported database driver "mssql"`,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dbConfig, err := test.config.Database()
			if test.errorContains != "" {
				assert.ErrorContains(t, err, test.errorContains)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expected, dbConfig)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing optional file", func(t *testing.T) {
		assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env"), false))
		assert.NoError(t, LoadEnvFile("", true))
	})

	t.Run("missing required file", func(t *testing.T) {
		err := LoadEnvFile(filepath.Join(t.TempDir(), ".env"), true)
		assert.ErrorIs(t, err, ErrParsing)
		assert.ErrorIs(t, err, syscall.ENOENT)
	})

	t.Run("existing variables are kept", func(t *testing.T) {
		t.Setenv("PROD", "false")
		t.Cleanup(func() {
			os.Unsetenv("CHUNK_SIZE")
			os.Unsetenv("WORK_DIR")
		})

		require.NoError(t, LoadEnvFile(filepath.Join("testdata", "test.env"), true))

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.False(t, cfg.Production)
		assert.Equal(t, 25, cfg.ChunkSize)
		assert.Equal(t, "data dir", cfg.WorkDir)
	})
}
