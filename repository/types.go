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
	"context"
	"errors"

	"github.com/tomoncle/hummer/database"
	"github.com/tomoncle/hummer/types"
	"github.com/uptrace/bun"
)

var (
	// ErrMultipleResults is returned by FindOne when more than one row matches.
	ErrMultipleResults = errors.New("repository: filter matched more than one entity")
	// ErrAmbiguousOrder is returned when a call sets both an ordering
	// function and an ordering expression.
	ErrAmbiguousOrder = errors.New("repository: both an ordering function and an ordering expression were given")
)

// Capability is implemented by every repository, generic or custom. Custom
// repositories usually get it by embedding a Repository.
type Capability interface {
	Session() *database.Session
}

// Store receives the write verbs of a repository. *database.Session is the
// implementation used outside tests.
type Store interface {
	Insert(ctx context.Context, model any) error
	UpdateFull(ctx context.Context, model any) error
	Delete(ctx context.Context, model any) error
}

// FindOptions shapes a FindMany query. Steps apply in field order: filters,
// includes, ordering, skip, take.
type FindOptions struct {
	// Filter is a textual WHERE clause with its arguments.
	Filter *types.QueryFilter
	// Where composes further conditions onto the query.
	Where func(q *bun.SelectQuery) *bun.SelectQuery
	// Includes lists relations to load eagerly, e.g. "Author" or "Author.Profile".
	Includes []string
	// OrderBy composes the ordering. Leave nil when using FindManySorted.
	OrderBy func(q *bun.SelectQuery) *bun.SelectQuery
	// Skip and Take are ignored when not positive.
	Skip int
	Take int
}

// QueryRepository defines read operations. Returned entities are plain values
// with no link back to the session.
type QueryRepository[T any] interface {
	FindMany(ctx context.Context, opts *FindOptions) ([]*T, error)

	FindManySorted(ctx context.Context, opts *FindOptions, orderBy string) ([]*T, error)

	// FindOne returns nil without error when nothing matches.
	FindOne(ctx context.Context, filter *types.QueryFilter) (*T, error)

	Count(ctx context.Context, filter *types.QueryFilter) (int, error)

	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// CommandRepository defines write operations. Batch variants stop at the
// first failing entity and return its error; entities written before it stay
// written in the session.
type CommandRepository[T any] interface {
	InsertOne(ctx context.Context, entity *T) error
	InsertMany(ctx context.Context, entities []*T) error

	UpdateOne(ctx context.Context, entity *T) error
	UpdateMany(ctx context.Context, entities []*T) error

	DeleteOne(ctx context.Context, entity *T) error
	DeleteMany(ctx context.Context, entities []*T) error

	Upsert(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error
}

// Repository is the per-entity facade bound to one session.
type Repository[T any] interface {
	Capability
	QueryRepository[T]
	CommandRepository[T]
	NewSelect() *bun.SelectQuery
}
