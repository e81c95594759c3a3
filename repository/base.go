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
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/tomoncle/hummer/database"
	"github.com/tomoncle/hummer/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	session *database.Session
	store   Store
}

// New returns the generic repository for T bound to session.
func New[T any](session *database.Session) Repository[T] {
	return &baseRepositoryImpl[T]{session: session, store: session}
}

func (r *baseRepositoryImpl[T]) Session() *database.Session { return r.session }

// NewSelect starts a query for T on the session. It is not bounded by the
// command timeout; callers own the context.
func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery {
	return r.session.IDB().NewSelect().Model((*T)(nil))
}

func (r *baseRepositoryImpl[T]) FindMany(ctx context.Context, opts *FindOptions) ([]*T, error) {
	return r.find(ctx, opts, nil)
}

func (r *baseRepositoryImpl[T]) FindManySorted(ctx context.Context, opts *FindOptions, orderBy string) ([]*T, error) {
	if opts != nil && opts.OrderBy != nil && strings.TrimSpace(orderBy) != "" {
		return nil, ErrAmbiguousOrder
	}
	keys, err := types.ParseSort(orderBy)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, opts, keys)
}

func (r *baseRepositoryImpl[T]) find(ctx context.Context, opts *FindOptions, keys []types.SortKey) ([]*T, error) {
	if opts == nil {
		opts = &FindOptions{}
	}
	orders, err := r.orderColumns(keys)
	if err != nil {
		return nil, err
	}

	entities := make([]*T, 0)
	err = r.session.Query(ctx, func(ctx context.Context, db bun.IDB) error {
		q := db.NewSelect().Model(&entities)
		q = applyFilters(q, opts.Filter, opts.Where)
		for _, path := range opts.Includes {
			q = q.Relation(path)
		}
		if opts.OrderBy != nil {
			q = opts.OrderBy(q)
		}
		for _, o := range orders {
			q = q.OrderExpr(o.expr, o.ident)
		}
		q = applyWindow(q, db.Dialect().Name(), opts.Skip, opts.Take)
		return q.Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	if entities == nil {
		entities = make([]*T, 0)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) FindOne(ctx context.Context, filter *types.QueryFilter) (*T, error) {
	var entities []*T
	err := r.session.Query(ctx, func(ctx context.Context, db bun.IDB) error {
		q := db.NewSelect().Model(&entities).Limit(2)
		return applyFilters(q, filter, nil).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, nil
	case 1:
		return entities[0], nil
	default:
		return nil, ErrMultipleResults
	}
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	var total int
	err := r.session.Query(ctx, func(ctx context.Context, db bun.IDB) error {
		var err error
		total, err = applyFilters(db.NewSelect().Model((*T)(nil)), filter, nil).Count(ctx)
		return err
	})
	return total, err
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest()
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())

	total, err := r.Count(ctx, pageRequest.GetFilter())
	if err != nil || total == 0 {
		return pagination, err
	}
	items, err := r.FindManySorted(ctx, &FindOptions{
		Filter: pageRequest.GetFilter(),
		Skip:   pageRequest.GetOffset(),
		Take:   pageRequest.GetPageSize(),
	}, pageRequest.GetSort())
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) InsertOne(ctx context.Context, entity *T) error {
	if entity == nil {
		return database.ErrNilEntity
	}
	return r.store.Insert(ctx, entity)
}

func (r *baseRepositoryImpl[T]) InsertMany(ctx context.Context, entities []*T) error {
	return each(entities, func(e *T) error { return r.InsertOne(ctx, e) })
}

func (r *baseRepositoryImpl[T]) UpdateOne(ctx context.Context, entity *T) error {
	if entity == nil {
		return database.ErrNilEntity
	}
	return r.store.UpdateFull(ctx, entity)
}

func (r *baseRepositoryImpl[T]) UpdateMany(ctx context.Context, entities []*T) error {
	return each(entities, func(e *T) error { return r.UpdateOne(ctx, e) })
}

func (r *baseRepositoryImpl[T]) DeleteOne(ctx context.Context, entity *T) error {
	if entity == nil {
		return database.ErrNilEntity
	}
	return r.store.Delete(ctx, entity)
}

func (r *baseRepositoryImpl[T]) DeleteMany(ctx context.Context, entities []*T) error {
	return each(entities, func(e *T) error { return r.DeleteOne(ctx, e) })
}

// each applies fn in order and stops at the first error.
func each[T any](entities []*T, fn func(*T) error) error {
	for _, e := range entities {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func applyFilters(q *bun.SelectQuery, filter *types.QueryFilter, where func(*bun.SelectQuery) *bun.SelectQuery) *bun.SelectQuery {
	if !filter.IsEmpty() {
		q = q.Where(filter.Schema, filter.Args...)
	}
	if where != nil {
		q = where(q)
	}
	return q
}

// applyWindow adds OFFSET/LIMIT. MySQL and SQLite reject OFFSET without
// LIMIT, so an unbounded limit is added there.
func applyWindow(q *bun.SelectQuery, name dialect.Name, skip, take int) *bun.SelectQuery {
	if take > 0 {
		q = q.Limit(take)
	}
	if skip > 0 {
		q = q.Offset(skip)
		if take <= 0 {
			switch name {
			case dialect.SQLite:
				q = q.Limit(-1)
			case dialect.MySQL:
				q = q.Limit(math.MaxInt)
			}
		}
	}
	return q
}

type orderColumn struct {
	expr  string
	ident bun.Ident
}

// orderColumns resolves sort keys against T's table. Plain fields may name
// either the Go field or the column; dotted paths address joined relations
// and are passed through as identifiers.
func (r *baseRepositoryImpl[T]) orderColumns(keys []types.SortKey) ([]orderColumn, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	table := r.session.DB().Table(reflect.TypeFor[T]())
	orders := make([]orderColumn, 0, len(keys))
	for _, k := range keys {
		if strings.Contains(k.Field, ".") {
			orders = append(orders, orderColumn{expr: "? " + k.Direction.String(), ident: bun.Ident(k.Field)})
			continue
		}
		col, ok := lookupColumn(table.Fields, k.Field)
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q on %s", types.ErrInvalidSort, k.Field, table.TypeName)
		}
		orders = append(orders, orderColumn{expr: "?TableAlias.? " + k.Direction.String(), ident: bun.Ident(col)})
	}
	return orders, nil
}

func lookupColumn(fields []*schema.Field, name string) (string, bool) {
	for _, f := range fields {
		if f.Name == name || f.GoName == name {
			return f.Name, true
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.GoName, name) {
			return f.Name, true
		}
	}
	return "", false
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, conflictKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if len(entity) == 0 {
		return nil
	}
	entities := make([]*T, len(entity))
	copy(entities, entity)

	if r.session.DB().HasFeature(feature.InsertOnConflict) {
		return r.upsertOnConflict(ctx, fields, conflictKeys, entities)
	} else if r.session.DB().HasFeature(feature.InsertOnDuplicateKey) {
		return r.upsertOnDuplicateKey(ctx, fields, entities)
	}
	return r.upsertFallback(ctx, entities)
}

func (r *baseRepositoryImpl[T]) upsertOnDuplicateKey(ctx context.Context, fields []string, entities []*T) error {
	var assignments []string
	for _, field := range fields {
		assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", field, field))
	}
	return r.session.Exec(ctx, "upsert", func(ctx context.Context, db bun.IDB) error {
		_, err := db.NewInsert().
			Model(&entities).
			On("DUPLICATE KEY UPDATE " + strings.Join(assignments, ", ")).
			Exec(ctx)
		return err
	})
}

func (r *baseRepositoryImpl[T]) upsertOnConflict(ctx context.Context, fields []string, conflictKeys []string, entities []*T) error {
	if len(conflictKeys) == 0 {
		conflictKeys = []string{"id"}
	}
	var assignments []string
	for _, field := range fields {
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", field, field))
	}
	return r.session.Exec(ctx, "upsert", func(ctx context.Context, db bun.IDB) error {
		_, err := db.NewInsert().
			Model(&entities).
			On("CONFLICT (" + strings.Join(conflictKeys, ", ") + ") DO UPDATE").
			Set(strings.Join(assignments, ", ")).
			Exec(ctx)
		return err
	})
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, entities []*T) error {
	for _, entity := range entities {
		if err := r.store.Insert(ctx, entity); err != nil {
			if updateErr := r.store.UpdateFull(ctx, entity); updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
			}
		}
	}
	return nil
}
