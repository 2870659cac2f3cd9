// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mia-platform/malbacklog/internal/database"
)

const (
	defaultSchema = "public"
)

// credentialsFile is the layout of the database credentials file.
type credentialsFile struct {
	PostgreSQL *database.Config `yaml:"postgresql"`
}

// NewDatabaseConfigFromPath reads the database credentials stored under the postgresql key of
// the YAML file at path.
func NewDatabaseConfigFromPath(path string) (database.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return database.Config{}, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var credentials credentialsFile
	if err := decoder.Decode(&credentials); err != nil {
		if errors.Is(err, io.EOF) {
			return database.Config{}, fmt.Errorf("%w %q: file is empty", ErrParsing, path)
		}
		return database.Config{}, fmt.Errorf("%w %q: %w", ErrParsing, path, err)
	}

	if credentials.PostgreSQL == nil {
		return database.Config{}, fmt.Errorf("%w %q: missing postgresql section", ErrParsing, path)
	}

	return *credentials.PostgreSQL, nil
}

// Database returns the connection parameters, merging the credentials file with the
// DATABASE_DSN and DATABASE_DRIVER overrides. The file may be missing only when a DSN is set.
func (c *Config) Database() (database.Config, error) {
	dbConfig, err := NewDatabaseConfigFromPath(c.DatabaseConfigPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && c.DatabaseDSN != "":
		dbConfig = database.Config{}
	case err != nil:
		return database.Config{}, err
	}

	if c.DatabaseDSN != "" {
		dbConfig.DSN = c.DatabaseDSN
	}
	if c.DatabaseDriver != "" {
		dbConfig.Driver = c.DatabaseDriver
	}

	if dbConfig.Schema == "" && !strings.EqualFold(dbConfig.Driver, database.DriverSQLite) {
		dbConfig.Schema = defaultSchema
	}

	if err := dbConfig.Validate(); err != nil {
		return database.Config{}, err
	}

	return dbConfig, nil
}
