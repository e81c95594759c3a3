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
	"fmt"

	"github.com/uptrace/bun"
)

// EnsureCreated creates a table for every model entity that does not have one
// yet, in ascending priority.
func (s *Session) EnsureCreated(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	for _, e := range s.model.ByPriority() {
		err := s.Query(ctx, func(ctx context.Context, db bun.IDB) error {
			_, err := db.NewCreateTable().Model(e.Instance()).IfNotExists().Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create table for %s: %w", e.Key, err)
		}
	}
	s.logger.Info("Database schema ensured", "session", s.id, "tables", len(s.model.Entities()))
	return nil
}

// EnsureDeleted drops the table of every model entity, in descending priority.
func (s *Session) EnsureDeleted(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	entities := s.model.ByPriority()
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		err := s.Query(ctx, func(ctx context.Context, db bun.IDB) error {
			_, err := db.NewDropTable().Model(e.Instance()).IfExists().Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to drop table for %s: %w", e.Key, err)
		}
	}
	s.logger.Info("Database schema dropped", "session", s.id, "tables", len(entities))
	return nil
}
