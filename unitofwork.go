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

package hummer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tomoncle/hummer/database"
	"github.com/tomoncle/hummer/repository"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Row is one result row keyed by column name. Byte slices are copied into
// strings.
type Row map[string]any

// UnitOfWork owns one session and the repositories bound to it. Every
// repository of a unit of work shares the session's transaction, so their
// writes are visible to each other before Save or Commit.
//
// A UnitOfWork is not safe for concurrent use. Always release it with Close:
//
//	uow, err := factory.CreateUnitOfWork(ctx)
//	if err != nil {
//		return err
//	}
//	defer uow.Close()
type UnitOfWork struct {
	session  *database.Session
	registry map[string]any
	logger   database.Logger
	closed   bool
}

func newUnitOfWork(session *database.Session, customs []RepositoryType, logger database.Logger) *UnitOfWork {
	registry := make(map[string]any)
	for _, e := range session.Model().Entities() {
		if _, ok := registry[e.Key]; ok {
			continue
		}
		registry[e.Key] = e.New(session)
	}
	for _, rt := range customs {
		if rt.IsZero() {
			continue
		}
		if _, ok := registry[rt.Key]; ok {
			continue
		}
		repo := rt.New(session)
		if _, ok := repo.(repository.Capability); !ok {
			logger.Warn("Skipping custom repository without repository capability", "uow", session.ID(), "type", rt.Key)
			continue
		}
		registry[rt.Key] = repo
	}
	logger.Debug("Unit of work created", "uow", session.ID(), "repositories", len(registry))
	return &UnitOfWork{session: session, registry: registry, logger: logger}
}

// ID identifies the unit of work in logs.
func (u *UnitOfWork) ID() string { return u.session.ID() }

func (u *UnitOfWork) Session() *database.Session { return u.session }

// EntityRepository returns the generic repository of T. It reports false when
// T is not part of the model or the unit of work is closed.
func EntityRepository[T any](u *UnitOfWork) (repository.Repository[T], bool) {
	if u == nil {
		return nil, false
	}
	repo, ok := u.registry[database.TypeKey[T]()].(repository.Repository[T])
	return repo, ok
}

// CustomRepository returns the custom repository of type R supplied to the
// factory. It reports false when no such repository was supplied.
func CustomRepository[R any](u *UnitOfWork) (R, bool) {
	var zero R
	if u == nil {
		return zero, false
	}
	repo, ok := u.registry[database.TypeKey[R]()].(R)
	if !ok {
		return zero, false
	}
	return repo, true
}

// CreateTransaction starts a read committed transaction.
func (u *UnitOfWork) CreateTransaction(ctx context.Context) (*database.Transaction, error) {
	return u.CreateTransactionWithIsolation(ctx, database.DefaultIsolation)
}

func (u *UnitOfWork) CreateTransactionWithIsolation(ctx context.Context, level sql.IsolationLevel) (*database.Transaction, error) {
	return u.session.Begin(ctx, level)
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	return u.session.Commit(ctx)
}

func (u *UnitOfWork) Rollback(ctx context.Context) error {
	return u.session.Rollback(ctx)
}

// Save flushes pending changes of every repository of the unit of work.
func (u *UnitOfWork) Save(ctx context.Context) error {
	return u.session.Save(ctx)
}

// ExecuteCommand runs command in its own transaction on a separate
// connection and returns the first column of the first row, or nil when the
// command yields no rows. The transaction is rolled back when anything fails.
//
// The command does not see unsaved changes of the unit of work. On SQLite a
// writing command fails with SQLITE_BUSY while such changes are pending,
// since the database allows a single writer; call Save first.
func (u *UnitOfWork) ExecuteCommand(ctx context.Context, command string, args ...any) (any, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidArgument)
	}
	var result any
	err := u.session.SideTransaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		rows, err := tx.QueryContext(ctx, command, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		if rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				return err
			}
			values, err := scanRow(rows, len(cols))
			if err != nil {
				return err
			}
			if len(values) > 0 {
				result = values[0]
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteStoredProcedure calls the stored procedure name in its own
// transaction on a separate connection and maps each row of the first result
// set with mapper. MySQL procedures are invoked with CALL and PostgreSQL
// functions with SELECT * FROM; SQLite has no stored procedures.
func ExecuteStoredProcedure[M any](ctx context.Context, u *UnitOfWork, name string, mapper func(Row) (M, error), args ...any) ([]M, error) {
	if u == nil || strings.TrimSpace(name) == "" || mapper == nil {
		return nil, fmt.Errorf("%w: unit of work, procedure name and mapper are required", ErrInvalidArgument)
	}
	query, err := procedureQuery(u.session.Dialect(), len(args))
	if err != nil {
		return nil, err
	}

	result := make([]M, 0)
	err = u.session.SideTransaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		rows, err := tx.QueryContext(ctx, query, append([]any{bun.Ident(name)}, args...)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			values, err := scanRow(rows, len(cols))
			if err != nil {
				return err
			}
			row := make(Row, len(cols))
			for i, col := range cols {
				row[col] = values[i]
			}
			m, err := mapper(row)
			if err != nil {
				return err
			}
			result = append(result, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func procedureQuery(name dialect.Name, argc int) (string, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", argc), ", ")
	switch name {
	case dialect.MySQL:
		return "CALL ?(" + placeholders + ")", nil
	case dialect.PG:
		return "SELECT * FROM ?(" + placeholders + ")", nil
	default:
		return "", fmt.Errorf("%w: stored procedures on %s", database.ErrUnsupported, name)
	}
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}

// EnsureDatabaseCreated creates missing tables for every model entity.
func (u *UnitOfWork) EnsureDatabaseCreated(ctx context.Context) error {
	return u.session.EnsureCreated(ctx)
}

// EnsureDatabaseDeleted drops the tables of every model entity.
func (u *UnitOfWork) EnsureDatabaseDeleted(ctx context.Context) error {
	return u.session.EnsureDeleted(ctx)
}

// Close discards unsaved changes, releases the session and clears the
// registry. Calling it again is a no-op.
func (u *UnitOfWork) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.registry = nil
	err := u.session.Close()
	u.logger.Debug("Unit of work closed", "uow", u.session.ID())
	return err
}
