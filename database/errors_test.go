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
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  SQLError
		known bool
	}{
		{"nil", nil, UnknownErr, false},
		{"no rows", fmt.Errorf("find: %w", sql.ErrNoRows), NoRowsErr, true},
		{"deadline", context.DeadlineExceeded, TimeoutErr, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, DuplicateKeyErr, true},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452}, ForeignKeyViolationErr, true},
		{"mysql other", &mysql.MySQLError{Number: 9999}, UnknownErr, true},
		{"postgres missing table", &pq.Error{Code: "42P01"}, NoTableErr, true},
		{"postgres not null", &pq.Error{Code: "23502"}, NotNullViolationErr, true},
		{"sqlite unique", errors.New("UNIQUE constraint failed: widgets.id"), DuplicateKeyErr, true},
		{"sqlite missing table", errors.New("SQL logic error: no such table: widgets (1)"), NoTableErr, true},
		{"other", errors.New("boom"), UnknownErr, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, known := Classify(tt.err)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestSQLErrorString(t *testing.T) {
	assert.NotEmpty(t, DuplicateKeyErr.String())
	assert.NotEqual(t, DuplicateKeyErr.String(), NoTableErr.String())
}
