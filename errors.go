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

import "errors"

var (
	// ErrInvalidArgument reports a missing or malformed argument.
	ErrInvalidArgument = errors.New("hummer: invalid argument")
	// ErrTypeConstraint reports a custom repository type that does not
	// implement repository.Capability.
	ErrTypeConstraint = errors.New("hummer: type does not implement repository.Capability")
	// ErrFactoryClosed is returned by a factory after Close.
	ErrFactoryClosed = errors.New("hummer: factory closed")
)
