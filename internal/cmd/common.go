// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mia-platform/malbacklog/internal/config"
	"github.com/mia-platform/malbacklog/internal/database"
	"github.com/mia-platform/malbacklog/internal/entity"
	"github.com/mia-platform/malbacklog/internal/pipeline"
	"github.com/mia-platform/malbacklog/internal/source"
	"github.com/mia-platform/malbacklog/internal/source/jikan"
)

var (
	// entityDescriptions holds the supported entity types and their description
	// for command completion.
	entityDescriptions = map[entity.Type]string{
		entity.Anime: "anime series and movies",
		entity.Manga: "manga and light novels",
	}

	// sourceGetter returns the source of the full records.
	// It can be overridden for testing purposes.
	sourceGetter = defaultSource
)

// handleError will do custom print error handling based on the type of error received.
// It prints the usage for invalid invocations before returning the original error.
func handleError(cmd *cobra.Command, err error) error {
	var unsupported *entity.UnsupportedTypeError
	switch {
	case errors.As(err, &unsupported):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	default:
		cmd.PrintErrln(err)
		return err
	}
}

// noArgs rejects positional arguments printing the usage.
func noArgs(cmd *cobra.Command, args []string) error {
	err := cobra.NoArgs(cmd, args)
	if err != nil {
		cmd.PrintErrln(err)
		_ = cmd.Usage()
	}

	return err
}

func entityCompletionFunc(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var comps []string
	for _, entityType := range entity.All() {
		if strings.HasPrefix(entityType.String(), strings.ToLower(toComplete)) {
			comps = append(comps, cobra.CompletionWithDesc(entityType.String(), entityDescriptions[entityType]))
		}
	}

	return comps, cobra.ShellCompDirectiveNoFileComp
}

func defaultSource() (source.Source, error) {
	return jikan.NewClient()
}

// newConnector returns a pipeline.Connector opening a new connection with the database settings
// of cfg. The settings are read on every call, so phases that never connect do not need them.
// Local SQLite databases get the tables created when missing.
func newConnector(cfg *config.Config) pipeline.Connector {
	return func(ctx context.Context) (*database.DB, error) {
		dbConfig, err := cfg.Database()
		if err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, dbConfig)
		if err != nil {
			return nil, err
		}

		if db.Driver() != database.DriverSQLite {
			return db, nil
		}

		tables := make([]string, 0, len(entity.All()))
		for _, entityType := range entity.All() {
			table, err := entityType.CatalogTable()
			if err != nil {
				db.Close()
				return nil, err
			}
			tables = append(tables, table)
		}

		if err := db.EnsureSchema(ctx, tables...); err != nil {
			db.Close()
			return nil, err
		}

		return db, nil
	}
}
