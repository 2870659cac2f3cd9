// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvironmentVariables(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		envVars, err := LoadServerConfig()
		require.NoError(t, err)
		assert.Equal(t, &Config{
			Enabled:               false,
			DisableStartupMessage: true,
			HTTPHost:              "0.0.0.0",
			HTTPPort:              3000,
		}, envVars)
		assert.Equal(t, "0.0.0.0:3000", envVars.Address())
	})

	t.Run("custom values", func(t *testing.T) {
		t.Setenv("STATUS_SERVER_ENABLED", "true")
		t.Setenv("HTTP_HOST", "127.0.0.1")
		t.Setenv("HTTP_PORT", "8080")
		envVars, err := LoadServerConfig()
		require.NoError(t, err)
		assert.True(t, envVars.Enabled)
		assert.Equal(t, "127.0.0.1:8080", envVars.Address())
	})

	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "655350")
		_, err := LoadServerConfig()
		assert.ErrorIs(t, err, ErrEnvVariablesNotValid)
	})

	t.Run("port not a number", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "http")
		_, err := LoadServerConfig()
		assert.ErrorIs(t, err, ErrEnvVariablesNotValid)
	})
}

func TestLoadValidateEnvironmentVariables(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		envVars       *Config
		errorContains string
	}{
		"negative port": {
			envVars:       &Config{HTTPHost: "localhost", HTTPPort: -1},
			errorContains: "HTTP_PORT is out of valid range (1-65535)",
		},
		"port too high": {
			envVars:       &Config{HTTPHost: "localhost", HTTPPort: 655350},
			errorContains: "HTTP_PORT is out of valid range (1-65535)",
		},
		"empty host": {
			envVars:       &Config{HTTPHost: " ", HTTPPort: 3000},
			errorContains: "HTTP_HOST must not be empty",
		},
		"valid": {
			envVars: &Config{HTTPHost: "localhost", HTTPPort: 3000},
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := validateEnvironmentVariables(test.envVars)
			if test.errorContains == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrEnvVariablesNotValid)
			require.ErrorContains(t, err, test.errorContains)
		})
	}
}
