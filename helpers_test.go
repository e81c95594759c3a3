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

package hummer_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/hummer"
	"github.com/tomoncle/hummer/config"
	"github.com/tomoncle/hummer/database"
	"github.com/tomoncle/hummer/repository"
	"github.com/tomoncle/hummer/types"
	"github.com/uptrace/bun"
)

type user struct {
	bun.BaseModel `bun:"table:users"`

	ID   int64  `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

type note struct {
	bun.BaseModel `bun:"table:notes"`

	ID     int64  `bun:"id,pk"`
	UserID int64  `bun:"user_id"`
	Body   string `bun:"body"`
}

type unregistered struct {
	ID int64 `bun:"id,pk"`
}

type userRepository struct {
	repository.Repository[user]
	tag string
}

func newUserRepository(s *database.Session) *userRepository {
	return &userRepository{Repository: repository.New[user](s), tag: "first"}
}

func (r *userRepository) FindByName(ctx context.Context, name string) (*user, error) {
	return r.FindOne(ctx, types.NewQueryFilter("name = ?", name))
}

type auditRepository struct {
	repository.Repository[note]
}

// plainService does not implement repository.Capability.
type plainService struct{}

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	store := config.NewStore()
	require.NoError(t, store.Merge(map[string]any{
		"database.driver":            "sqlite",
		"database.connection_string": filepath.Join(t.TempDir(), "hummer.db"),
	}))
	return store
}

func newTestModel() *database.Model {
	model := database.NewModel()
	repository.MustRegister[user](model, 0)
	repository.MustRegister[note](model, 1)
	return model
}

func newTestFactory(t *testing.T, store *config.Store, opts ...hummer.FactoryOption) *hummer.Factory {
	t.Helper()
	f, err := hummer.NewFactory(newTestModel(), store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func newTestUnitOfWork(t *testing.T, f *hummer.Factory) *hummer.UnitOfWork {
	t.Helper()
	uow, err := f.CreateUnitOfWork(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = uow.Close() })
	require.NoError(t, uow.EnsureDatabaseCreated(context.Background()))
	return uow
}
