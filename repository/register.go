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

package repository

import (
	"reflect"

	"github.com/tomoncle/hummer/database"
)

// Register adds T to model with a constructor for its generic repository.
// Lower priorities are created first and dropped last.
func Register[T any](model *database.Model, priority int) error {
	return model.Register(database.Entity{
		Type:     reflect.TypeFor[T](),
		Priority: priority,
		New: func(s *database.Session) any {
			return New[T](s)
		},
	})
}

// MustRegister is like Register but panics on error.
func MustRegister[T any](model *database.Model, priority int) {
	if err := Register[T](model, priority); err != nil {
		panic(err)
	}
}
