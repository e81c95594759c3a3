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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// DefaultIsolation is the isolation level of transactions created without an
// explicit level.
const DefaultIsolation = sql.LevelReadCommitted

// Session is one logical database session: a dedicated bun database opened
// from an options snapshot, a pinned connection, and at most one active
// transaction shared by every repository bound to it.
//
// Writes issued while no transaction is active open an implicit one, so all
// repositories of the session see each other's changes. Save commits the
// implicit transaction; Close discards it.
//
// A Session is not safe for concurrent use.
type Session struct {
	id      string
	db      *bun.DB
	conn    bun.Conn
	model   *Model
	timeout time.Duration
	logger  Logger

	tx       *Transaction
	implicit bool
	closed   bool
}

// OpenSession opens a database for opts, registers model with it and pins a
// connection for the session's lifetime.
func OpenSession(ctx context.Context, opts Options, model *Model, logger Logger) (*Session, error) {
	if model == nil {
		model = NewModel()
	}
	if logger == nil {
		logger = GetLogger()
	}

	db, err := Open(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	if instances := model.Instances(); len(instances) > 0 {
		db.RegisterModel(instances...)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to acquire session connection: %w", err)
	}

	s := &Session{
		id:      uuid.NewString(),
		db:      db,
		conn:    conn,
		model:   model,
		timeout: opts.Timeout(),
		logger:  logger,
	}
	logger.Debug("Session opened", "session", s.id, "driver", opts.NormalizedDriver())
	return s, nil
}

func (s *Session) ID() string { return s.id }

// DB returns the session's database. Statements issued on it directly do not
// take part in the session's transaction.
func (s *Session) DB() *bun.DB { return s.db }

func (s *Session) Model() *Model { return s.model }

func (s *Session) Dialect() dialect.Name { return s.db.Dialect().Name() }

func (s *Session) Timeout() time.Duration { return s.timeout }

func (s *Session) Logger() Logger { return s.logger }

func (s *Session) Closed() bool { return s.closed }

// InTransaction reports whether a transaction, explicit or implicit, is open.
func (s *Session) InTransaction() bool { return s.tx != nil }

// WithTimeout bounds ctx by the configured command timeout.
func (s *Session) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// IDB returns the active transaction, or the pinned connection when none is
// open.
func (s *Session) IDB() bun.IDB {
	if s.tx != nil {
		return s.tx.tx
	}
	return s.conn
}

// Query runs a read against the session.
func (s *Session) Query(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
	if s.closed {
		return ErrSessionClosed
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()
	return s.observe("query", fn(ctx, s.IDB()))
}

// Exec runs a write against the session, opening the implicit transaction
// first when needed.
func (s *Session) Exec(ctx context.Context, op string, fn func(ctx context.Context, db bun.IDB) error) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		if _, err := s.begin(ctx, sql.LevelDefault, true); err != nil {
			return err
		}
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()
	return s.observe(op, fn(ctx, s.tx.tx))
}

// Insert adds model as a new row.
func (s *Session) Insert(ctx context.Context, model any) error {
	if model == nil {
		return ErrNilEntity
	}
	return s.Exec(ctx, "insert", func(ctx context.Context, db bun.IDB) error {
		_, err := db.NewInsert().Model(model).Exec(ctx)
		return err
	})
}

// UpdateFull rewrites every column of the row addressed by model's primary key.
func (s *Session) UpdateFull(ctx context.Context, model any) error {
	if model == nil {
		return ErrNilEntity
	}
	return s.Exec(ctx, "update", func(ctx context.Context, db bun.IDB) error {
		_, err := db.NewUpdate().Model(model).WherePK().Exec(ctx)
		return err
	})
}

// Delete removes the row addressed by model's primary key.
func (s *Session) Delete(ctx context.Context, model any) error {
	if model == nil {
		return ErrNilEntity
	}
	return s.Exec(ctx, "delete", func(ctx context.Context, db bun.IDB) error {
		_, err := db.NewDelete().Model(model).WherePK().Exec(ctx)
		return err
	})
}

// Save flushes pending changes by committing the implicit transaction. Inside
// an explicit transaction it does nothing; Commit decides there.
func (s *Session) Save(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil || !s.implicit {
		return nil
	}
	return s.tx.Commit()
}

// Begin starts an explicit transaction. Pending implicit changes must be
// saved first.
func (s *Session) Begin(ctx context.Context, level sql.IsolationLevel) (*Transaction, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		if s.implicit {
			return nil, fmt.Errorf("%w: save pending changes before starting a transaction", ErrTransactionActive)
		}
		return nil, ErrTransactionActive
	}
	return s.begin(ctx, level, false)
}

func (s *Session) begin(ctx context.Context, level sql.IsolationLevel, implicit bool) (*Transaction, error) {
	// database/sql rolls a transaction back when its context ends, the
	// transaction has to outlive the call that opened it.
	tx, err := s.conn.BeginTx(context.WithoutCancel(ctx), &sql.TxOptions{Isolation: s.isolation(level)})
	if err != nil {
		return nil, s.observe("begin", err)
	}
	s.tx = &Transaction{session: s, tx: tx, level: level}
	s.implicit = implicit
	if !implicit {
		s.logger.Debug("Transaction started", "session", s.id, "isolation", level.String())
	}
	return s.tx, nil
}

// isolation maps level onto what the dialect accepts. SQLite only offers
// serializable transactions and some drivers reject explicit levels.
func (s *Session) isolation(level sql.IsolationLevel) sql.IsolationLevel {
	if s.Dialect() == dialect.SQLite {
		return sql.LevelDefault
	}
	return level
}

// Commit applies the active transaction.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		return ErrNoTransaction
	}
	return s.tx.Commit()
}

// Rollback discards the active transaction.
func (s *Session) Rollback(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		return ErrNoTransaction
	}
	return s.tx.Rollback()
}

// SideTransaction runs fn inside a transaction on a separate connection that
// is independent of the session's own transaction. The transaction is
// committed when fn succeeds and rolled back otherwise; fn's error is
// returned unchanged.
func (s *Session) SideTransaction(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if s.closed {
		return ErrSessionClosed
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return s.observe("side_connect", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return s.observe("side_begin", err)
	}
	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Side transaction rollback failed", "session", s.id, "error", rbErr)
		}
		return s.observe("side_exec", err)
	}
	return s.observe("side_commit", tx.Commit())
}

// Close discards any open transaction and releases the connection and the
// database. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.tx != nil {
		if s.implicit {
			s.logger.Warn("Session closed with unsaved changes, discarding", "session", s.id)
		}
		if err := s.tx.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		s.tx.done = true
		s.tx = nil
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Debug("Session closed", "session", s.id)
	return errors.Join(errs...)
}

func (s *Session) observe(op string, err error) error {
	if err == nil {
		return nil
	}
	kind, _ := Classify(err)
	if kind != NoRowsErr {
		s.logger.Warn("Store operation failed", "session", s.id, "op", op, "kind", kind, "error", err)
	}
	return err
}

// Transaction is the handle of a session transaction.
type Transaction struct {
	session *Session
	tx      bun.Tx
	level   sql.IsolationLevel
	done    bool
}

func (t *Transaction) Isolation() sql.IsolationLevel { return t.level }

// Tx exposes the underlying bun transaction.
func (t *Transaction) Tx() bun.Tx { return t.tx }

// Commit applies the transaction and detaches it from its session.
func (t *Transaction) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.finish()
	return t.session.observe("commit", t.tx.Commit())
}

// Rollback discards the transaction and detaches it from its session.
func (t *Transaction) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.finish()
	return t.session.observe("rollback", t.tx.Rollback())
}

func (t *Transaction) finish() {
	t.done = true
	if t.session.tx == t {
		t.session.tx = nil
		t.session.implicit = false
	}
}
