// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mia-platform/malbacklog/internal/config"
)

const (
	entityFlagName  = "entity"
	entityFlagShort = "e"
	entityFlagUsage = "Entity type to process (anime or manga). Can be specified multiple times, defaults to every type."

	chunkSizeFlagName  = "chunk-size"
	chunkSizeFlagUsage = "Number of records inserted in a single transaction, overrides CHUNK_SIZE"

	prodFlagName  = "prod"
	prodFlagUsage = "Process every pending identifier instead of a small sample, overrides PROD"

	envFileFlagName    = "env-file"
	envFileFlagUsage   = "Path to a dotenv file to load before reading the environment; it must exist only when set explicitly"
	defaultEnvFilePath = ".env"

	forceFlagName  = "force"
	forceFlagUsage = "Load staging logs even when incomplete or already loaded, records may be inserted twice"
)

// flags collects the CLI options shared by the phase commands.
type flags struct {
	entities  []string
	chunkSize int
	prod      bool
	envFile   string
	force     bool
}

// addFlags registers the CLI flags on cmd.
func (f *flags) addFlags(cmd *cobra.Command, withForce bool) {
	cmd.Flags().StringArrayVarP(&f.entities, entityFlagName, entityFlagShort, nil, entityFlagUsage)
	cmd.Flags().IntVar(&f.chunkSize, chunkSizeFlagName, 0, chunkSizeFlagUsage)
	cmd.Flags().BoolVar(&f.prod, prodFlagName, false, prodFlagUsage)
	cmd.Flags().StringVar(&f.envFile, envFileFlagName, defaultEnvFilePath, envFileFlagUsage)
	if withForce {
		cmd.Flags().BoolVar(&f.force, forceFlagName, false, forceFlagUsage)
	}

	_ = cmd.RegisterFlagCompletionFunc(entityFlagName, entityCompletionFunc)
}

// toOptions builds an options instance from the environment and the parsed flags. Explicit flags
// win over the environment values.
func (f *flags) toOptions(cmd *cobra.Command, phase phase) (*options, error) {
	if err := config.LoadEnvFile(f.envFile, cmd.Flags().Changed(envFileFlagName)); err != nil {
		return nil, err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed(chunkSizeFlagName) {
		cfg.ChunkSize = f.chunkSize
	}
	if cmd.Flags().Changed(prodFlagName) {
		cfg.Production = f.prod
	}

	return &options{
		phase:        phase,
		entities:     f.entities,
		force:        f.force,
		config:       cfg,
		sourceGetter: sourceGetter,
	}, nil
}
