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
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// RepositoryConstructor builds the repository bound to a session for one
// registered entity type.
type RepositoryConstructor func(s *Session) any

// Entity describes one entity type known to a Model.
type Entity struct {
	Key      string
	Type     reflect.Type
	Priority int
	New      RepositoryConstructor
}

// Instance returns a typed nil pointer usable as a bun model.
func (e Entity) Instance() interface{} {
	return reflect.Zero(reflect.PointerTo(e.Type)).Interface()
}

// Model is the set of entity types a session knows about. Registration is
// expected to complete before the model is handed to a factory.
type Model struct {
	mu       sync.RWMutex
	entities []Entity
	index    map[string]int
}

func NewModel() *Model {
	return &Model{index: make(map[string]int)}
}

// Register adds an entity. Only struct types are accepted; pointers are
// rejected since bun models are built as *T. Registering the same key twice
// keeps the first registration and reports an error.
func (m *Model) Register(e Entity) error {
	if e.Type == nil || e.New == nil {
		return fmt.Errorf("entity registration requires a type and a constructor")
	}
	if e.Type.Kind() != reflect.Struct {
		return fmt.Errorf("entity %s must be a struct type, got %s", e.Type, e.Type.Kind())
	}
	if e.Key == "" {
		e.Key = KeyOf(e.Type)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[e.Key]; ok {
		return fmt.Errorf("entity %s already registered", e.Key)
	}
	m.index[e.Key] = len(m.entities)
	m.entities = append(m.entities, e)
	return nil
}

// Lookup returns the registration for key.
func (m *Model) Lookup(key string) (Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[key]
	if !ok {
		return Entity{}, false
	}
	return m.entities[i], true
}

// Entities returns registrations in registration order.
func (m *Model) Entities() []Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Entity, len(m.entities))
	copy(result, m.entities)
	return result
}

// ByPriority returns registrations sorted by ascending priority; ties keep
// registration order.
func (m *Model) ByPriority() []Entity {
	result := m.Entities()
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result
}

// Instances returns a bun model instance per entity, by priority.
func (m *Model) Instances() []interface{} {
	entities := m.ByPriority()
	instances := make([]interface{}, len(entities))
	for i, e := range entities {
		instances[i] = e.Instance()
	}
	return instances
}

// KeyOf returns the fully-qualified name of t ("import/path.Name"). Pointer
// types are keyed by their element type.
func KeyOf(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// TypeKey returns KeyOf for T.
func TypeKey[T any]() string {
	return KeyOf(reflect.TypeFor[T]())
}
