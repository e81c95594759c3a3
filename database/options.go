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
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DefaultCommandTimeout applies when CommandTimeout is unset or not positive.
const DefaultCommandTimeout = 30

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var supportedDrivers = []string{DriverMySQL, DriverPostgres, DriverSQLite}

// Options is the configuration section a factory reads for its sessions.
type Options struct {
	Driver           string        `koanf:"driver" json:"driver"` // postgres、mysql、sqlite
	ConnectionString string        `koanf:"connection_string" json:"connection_string"`
	CommandTimeout   int           `koanf:"command_timeout" json:"command_timeout"` // seconds
	MaxOpenConns     int           `koanf:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns     int           `koanf:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `koanf:"conn_max_lifetime" json:"conn_max_lifetime"`
	EnableQueryLog   bool          `koanf:"enable_query_log" json:"enable_query_log"`
	SlowQueryTime    time.Duration `koanf:"slow_query_time" json:"slow_query_time"`
}

// EffectiveCommandTimeout returns CommandTimeout in seconds, falling back to
// DefaultCommandTimeout when it is zero or negative.
func (o Options) EffectiveCommandTimeout() int {
	if o.CommandTimeout <= 0 {
		return DefaultCommandTimeout
	}
	return o.CommandTimeout
}

// Timeout is EffectiveCommandTimeout as a duration.
func (o Options) Timeout() time.Duration {
	return time.Duration(o.EffectiveCommandTimeout()) * time.Second
}

// NormalizedDriver maps driver aliases onto the canonical driver names.
func (o Options) NormalizedDriver() string {
	switch d := strings.ToLower(strings.TrimSpace(o.Driver)); d {
	case "postgresql", "pg":
		return DriverPostgres
	case "sqlite3":
		return DriverSQLite
	default:
		return d
	}
}

const redacted = "xxxxx"

var pgPassword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// RedactedConnectionString returns the connection string with its password
// masked, for display. A mysql DSN that does not parse is masked entirely.
func (o Options) RedactedConnectionString() string {
	switch o.NormalizedDriver() {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(o.ConnectionString)
		if err != nil {
			return redacted
		}
		if cfg.Passwd != "" {
			cfg.Passwd = redacted
		}
		return cfg.FormatDSN()
	case DriverPostgres:
		if u, err := url.Parse(o.ConnectionString); err == nil && u.Scheme != "" {
			return u.Redacted()
		}
		return pgPassword.ReplaceAllString(o.ConnectionString, "${1}"+redacted)
	default:
		return o.ConnectionString
	}
}

// Validate reports every problem with the options at once.
func (o Options) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ConnectionString) == "" {
		errs = append(errs, errors.New("connection string is required"))
	}
	driver := o.NormalizedDriver()
	if driver == "" {
		errs = append(errs, errors.New("driver is required"))
	} else if !isSupportedDriver(driver) {
		errs = append(errs, fmt.Errorf("unsupported database driver: %s, supported drivers: %v", o.Driver, supportedDrivers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid database options: %w", errors.Join(errs...))
	}
	return nil
}

func isSupportedDriver(driver string) bool {
	for _, d := range supportedDrivers {
		if d == driver {
			return true
		}
	}
	return false
}
