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
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/hummer/database"
)

func TestRegistrySkipsIncapableRepositories(t *testing.T) {
	s, err := database.OpenSession(context.Background(), database.Options{
		Driver:           database.DriverSQLite,
		ConnectionString: filepath.Join(t.TempDir(), "registry.db"),
	}, nil, nil)
	require.NoError(t, err)

	uow := newUnitOfWork(s, []RepositoryType{
		{Key: "counter", Type: reflect.TypeFor[int](), New: func(*database.Session) any { return 1 }},
		{},
	}, database.GetLogger())
	defer uow.Close()

	assert.Empty(t, uow.registry)
	_, ok := CustomRepository[int](uow)
	assert.False(t, ok)
}

func TestNewRepositoryType(t *testing.T) {
	rt := NewRepositoryType[*database.Session](nil)
	assert.True(t, rt.IsZero())
	assert.Equal(t, "github.com/tomoncle/hummer/database.Session", rt.Key)

	rt = NewRepositoryType(func(s *database.Session) *database.Session { return s })
	assert.False(t, rt.IsZero())
	assert.False(t, rt.IsCapable())
}
