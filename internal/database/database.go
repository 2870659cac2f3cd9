// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // register the postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // register the sqlite3 dialect
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx driver
	_ "github.com/lib/pq"              // register the postgres driver
	_ "modernc.org/sqlite"             // register the sqlite driver
)

const (
	// DriverPgx connects to PostgreSQL through pgx.
	DriverPgx = "pgx"
	// DriverPostgres connects to PostgreSQL through lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite opens a local SQLite database, useful for development and tests.
	DriverSQLite = "sqlite"

	// BacklogTable is the table receiving the fetched records.
	BacklogTable = "mal_backlog"

	defaultPostgresPort = 5432
)

// Drivers returns the supported driver names.
func Drivers() []string {
	return []string{DriverPgx, DriverPostgres, DriverSQLite}
}

// ConnectError reports the failure of establishing a connection with the database.
type ConnectError struct {
	Driver string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s database: %s", e.Driver, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Config holds the connection parameters of the relational store.
type Config struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Schema   string `yaml:"schema"`
}

// Validate checks that the configuration contains enough information to open a connection.
func (c Config) Validate() error {
	driver := c.driverName()
	if !slices.Contains(Drivers(), driver) {
		return fmt.Errorf("unsupported database driver %q, valid values are: %s", c.Driver, strings.Join(Drivers(), ", "))
	}

	if c.DSN != "" {
		return nil
	}

	switch driver {
	case DriverSQLite:
		if c.DBName == "" {
			return fmt.Errorf("sqlite driver requires a dsn or a dbname")
		}
	default:
		if c.Host == "" || c.DBName == "" {
			return fmt.Errorf("%s driver requires a dsn or both host and dbname", driver)
		}
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("invalid database port %d", c.Port)
		}
	}

	return nil
}

func (c Config) driverName() string {
	if c.Driver == "" {
		return DriverPgx
	}
	return strings.ToLower(c.Driver)
}

// ConnectionString returns the DSN passed to the driver.
func (c Config) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}

	if c.driverName() == DriverSQLite {
		return c.DBName
	}

	port := c.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	values := map[string]string{
		"host":     c.Host,
		"port":     strconv.Itoa(port),
		"user":     c.User,
		"password": c.Password,
		"dbname":   c.DBName,
		"sslmode":  c.SSLMode,
	}

	// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING-KEYWORD-VALUE
	keys := make([]string, 0, len(values))
	for key, value := range values {
		if value != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"='"+replacer.Replace(values[key])+"'")
	}

	return strings.Join(parts, " ")
}

// DB is a connection pool paired with the SQL dialect of its driver.
type DB struct {
	*goqu.Database

	db     *sql.DB
	driver string
	schema string
}

// Open connects to the database described by cfg and verifies the connection.
// Every failure is returned as a *ConnectError.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	driver := cfg.driverName()
	if err := cfg.Validate(); err != nil {
		return nil, &ConnectError{Driver: driver, Err: err}
	}

	sqlDB, err := sql.Open(driver, cfg.ConnectionString())
	if err != nil {
		return nil, &ConnectError{Driver: driver, Err: err}
	}

	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, &ConnectError{Driver: driver, Err: err}
	}

	return New(sqlDB, driver, cfg.Schema), nil
}

// New wraps an already open connection pool. schema qualifies every table when not empty.
func New(sqlDB *sql.DB, driver, schema string) *DB {
	return &DB{
		Database: goqu.New(Dialect(driver), sqlDB),
		db:       sqlDB,
		driver:   driver,
		schema:   schema,
	}
}

// Dialect returns the goqu dialect matching driver.
func Dialect(driver string) string {
	if strings.EqualFold(driver, DriverSQLite) {
		return "sqlite3"
	}
	return "postgres"
}

// Driver returns the name of the driver in use.
func (d *DB) Driver() string {
	return d.driver
}

// Table returns the identifier of name, qualified with the configured schema.
func (d *DB) Table(name string) exp.IdentifierExpression {
	if d.schema == "" {
		return goqu.T(name)
	}
	return goqu.S(d.schema).Table(name)
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// EnsureSchema creates the catalog and backlog tables when they are missing.
// It is meant for local SQLite databases, where no one else provisions them.
func (d *DB) EnsureSchema(ctx context.Context, catalogTables ...string) error {
	statements := make([]string, 0, len(catalogTables)+1)
	for _, table := range catalogTables {
		statements = append(statements, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY)", d.quotedTable(table)))
	}
	statements = append(statements, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER, entity TEXT, payload TEXT)", d.quotedTable(BacklogTable)))

	for _, statement := range statements {
		if _, err := d.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	return nil
}

func (d *DB) quotedTable(name string) string {
	if d.schema == "" {
		return quoteIdentifier(name)
	}
	return quoteIdentifier(d.schema) + "." + quoteIdentifier(name)
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
