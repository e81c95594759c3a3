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
	"reflect"

	"github.com/tomoncle/hummer/database"
	"github.com/tomoncle/hummer/repository"
)

var capabilityType = reflect.TypeFor[repository.Capability]()

// RepositoryType describes a custom repository a unit of work builds next to
// the generic ones. It is keyed by the fully-qualified name of the type its
// constructor returns.
type RepositoryType struct {
	Key  string
	Type reflect.Type
	New  func(s *database.Session) any
}

// NewRepositoryType builds the descriptor of R from its session constructor.
//
//	hummer.NewRepositoryType(NewUserRepository) // func(*database.Session) *UserRepository
func NewRepositoryType[R any](ctor func(s *database.Session) R) RepositoryType {
	t := reflect.TypeFor[R]()
	rt := RepositoryType{Key: database.KeyOf(t), Type: t}
	if ctor != nil {
		rt.New = func(s *database.Session) any { return ctor(s) }
	}
	return rt
}

func (rt RepositoryType) IsZero() bool {
	return rt.Key == "" || rt.Type == nil || rt.New == nil
}

// IsCapable reports whether the described type implements repository.Capability.
func (rt RepositoryType) IsCapable() bool {
	return rt.Type != nil && rt.Type.Implements(capabilityType)
}
