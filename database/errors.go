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
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

var (
	ErrSessionClosed     = errors.New("database: session is closed")
	ErrNoTransaction     = errors.New("database: no active transaction")
	ErrTransactionActive = errors.New("database: a transaction is already active")
	ErrUnsupported       = errors.New("database: operation not supported by driver")
	ErrNilEntity         = errors.New("database: entity cannot be nil")
)

// SQLError is a driver independent classification of a store failure.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	TimeoutErr
)

func (e SQLError) String() string {
	switch e {
	case NoRowsErr:
		return "no_rows"
	case NoColumnErr:
		return "no_column"
	case NoTableErr:
		return "no_table"
	case ExistTableErr:
		return "exist_table"
	case DuplicateKeyErr:
		return "duplicate_key"
	case NotNullViolationErr:
		return "not_null_violation"
	case ForeignKeyViolationErr:
		return "foreign_key_violation"
	case CheckConstraintViolationErr:
		return "check_constraint_violation"
	case DataTruncatedErr:
		return "data_truncated"
	case TimeoutErr:
		return "timeout"
	default:
		return "unknown"
	}
}

// Classify maps a store error onto an SQLError. The boolean is false when err
// does not look like a database error at all.
func Classify(err error) (SQLError, bool) {
	if err == nil {
		return UnknownErr, false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NoRowsErr, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutErr, true
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1054:
			return NoColumnErr, true
		case 1146:
			return NoTableErr, true
		case 1050:
			return ExistTableErr, true
		case 1062:
			return DuplicateKeyErr, true
		case 1048:
			return NotNullViolationErr, true
		case 1216, 1217, 1451, 1452:
			return ForeignKeyViolationErr, true
		case 3819:
			return CheckConstraintViolationErr, true
		case 1265, 1406:
			return DataTruncatedErr, true
		default:
			return UnknownErr, true
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42703":
			return NoColumnErr, true
		case "42P01":
			return NoTableErr, true
		case "42P07":
			return ExistTableErr, true
		case "23505":
			return DuplicateKeyErr, true
		case "23502":
			return NotNullViolationErr, true
		case "23503":
			return ForeignKeyViolationErr, true
		case "23514":
			return CheckConstraintViolationErr, true
		case "22001":
			return DataTruncatedErr, true
		default:
			return UnknownErr, true
		}
	}

	// sqlite drivers only expose messages
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "no such column"):
		return NoColumnErr, true
	case strings.Contains(s, "no such table"):
		return NoTableErr, true
	case strings.Contains(s, "already exists") && strings.Contains(s, "table"):
		return ExistTableErr, true
	case strings.Contains(s, "unique constraint failed"):
		return DuplicateKeyErr, true
	case strings.Contains(s, "not null constraint failed"):
		return NotNullViolationErr, true
	case strings.Contains(s, "foreign key constraint failed"):
		return ForeignKeyViolationErr, true
	case strings.Contains(s, "check constraint failed"):
		return CheckConstraintViolationErr, true
	}
	return UnknownErr, false
}
