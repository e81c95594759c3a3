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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommandTimeoutDefaults(t *testing.T) {
	tests := []struct {
		configured int
		want       int
	}{
		{0, 30},
		{-5, 30},
		{45, 45},
		{1, 1},
	}
	for _, tt := range tests {
		opts := Options{CommandTimeout: tt.configured}
		assert.Equal(t, tt.want, opts.EffectiveCommandTimeout(), "configured %d", tt.configured)
		assert.Equal(t, time.Duration(tt.want)*time.Second, opts.Timeout())
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, Options{Driver: "sqlite3", ConnectionString: "test.db"}.Validate())
	assert.NoError(t, Options{Driver: "PostgreSQL", ConnectionString: "postgres://localhost/db"}.Validate())

	err := Options{}.Validate()
	assert.ErrorContains(t, err, "connection string is required")
	assert.ErrorContains(t, err, "driver is required")

	assert.ErrorContains(t, Options{Driver: "oracle", ConnectionString: "x"}.Validate(), "unsupported database driver")
}

func TestNormalizedDriver(t *testing.T) {
	assert.Equal(t, DriverPostgres, Options{Driver: " pg "}.NormalizedDriver())
	assert.Equal(t, DriverSQLite, Options{Driver: "SQLite3"}.NormalizedDriver())
	assert.Equal(t, DriverMySQL, Options{Driver: "mysql"}.NormalizedDriver())
}

func TestRedactedConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    string
		notWant string
	}{
		{"mysql", Options{Driver: "mysql", ConnectionString: "app:secret@tcp(db:3306)/shop"}, "app:xxxxx@tcp(db:3306)/shop", "secret"},
		{"mysql without password", Options{Driver: "mysql", ConnectionString: "app@tcp(db:3306)/shop"}, "app@tcp(db:3306)/shop", "xxxxx"},
		{"mysql unparsable", Options{Driver: "mysql", ConnectionString: "app:secret@bogus"}, "xxxxx", "secret"},
		{"postgres url", Options{Driver: "pg", ConnectionString: "postgres://app:secret@db:5432/shop?sslmode=disable"}, "postgres://app:xxxxx@db:5432/shop?sslmode=disable", "secret"},
		{"postgres keywords", Options{Driver: "postgres", ConnectionString: "host=db user=app password='se cret' dbname=shop"}, "host=db user=app password=xxxxx dbname=shop", "cret"},
		{"sqlite", Options{Driver: "sqlite", ConnectionString: "file:app.db?cache=shared"}, "file:app.db?cache=shared", "xxxxx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.RedactedConnectionString()
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, tt.notWant)
		})
	}
}
