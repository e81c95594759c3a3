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
	"time"
)

// HealthStatus holds the result of a health check against a session's database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	ResponseTime  time.Duration `json:"response_time"`
	OpenConns     int           `json:"open_conns"`
	InUse         int           `json:"in_use"`
	Idle          int           `json:"idle"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// HealthCheck pings the session's database within the command timeout and
// reports its pool statistics.
func (s *Session) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	if s.closed {
		status.LastError = ErrSessionClosed.Error()
		return status
	}

	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()
	err := s.db.PingContext(ctx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
		s.logger.Warn("Database health check failed", "session", s.id, "error", err)
	} else {
		status.Healthy = true
	}

	stats := s.db.DB.Stats()
	status.OpenConns = stats.OpenConnections
	status.InUse = stats.InUse
	status.Idle = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}
