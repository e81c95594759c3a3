/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Open connects a new bun database for opts and verifies it with a ping
// bounded by the command timeout.
func Open(ctx context.Context, opts Options, logger Logger) (*bun.DB, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	db, err := createConnection(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	configureConnectionPool(db.DB, opts)

	if opts.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if opts.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{
			slowTime: opts.SlowQueryTime,
			logger:   logger,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	return db, nil
}

func createConnection(opts Options) (*bun.DB, error) {
	switch opts.NormalizedDriver() {
	case DriverMySQL:
		return createMySQLConnection(opts.ConnectionString)
	case DriverPostgres:
		return createPostgreSQLConnection(opts.ConnectionString)
	case DriverSQLite:
		return createSQLiteConnection(opts.ConnectionString)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}
}

func createMySQLConnection(dsn string) (*bun.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection string: %w", err)
	}
	// bun scans DATETIME columns into time.Time
	cfg.ParseTime = true

	sqlDB, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqlDB, mysqldialect.New()), nil
}

func createPostgreSQLConnection(dsn string) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

func createSQLiteConnection(dsn string) (*bun.DB, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func configureConnectionPool(sqlDB *sql.DB, opts Options) {
	if sqlDB == nil {
		return
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
}
