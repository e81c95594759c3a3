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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/hummer/database"
	"github.com/tomoncle/hummer/types"
	"github.com/uptrace/bun"
)

type author struct {
	bun.BaseModel `bun:"table:authors"`

	ID   int64  `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

type book struct {
	bun.BaseModel `bun:"table:books"`

	ID       int64   `bun:"id,pk"`
	Title    string  `bun:"title,notnull"`
	Year     int     `bun:"year"`
	AuthorID int64   `bun:"author_id"`
	Author   *author `bun:"rel:belongs-to,join:author_id=id"`
}

func openSession(t *testing.T) *database.Session {
	t.Helper()
	model := database.NewModel()
	require.NoError(t, Register[author](model, 0))
	require.NoError(t, Register[book](model, 1))

	s, err := database.OpenSession(context.Background(), database.Options{
		Driver:           database.DriverSQLite,
		ConnectionString: filepath.Join(t.TempDir(), "repository.db"),
	}, model, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureCreated(context.Background()))
	return s
}

// seeded returns the book repository over two authors and five books.
func seeded(t *testing.T) Repository[book] {
	t.Helper()
	ctx := context.Background()
	s := openSession(t)

	require.NoError(t, New[author](s).InsertMany(ctx, []*author{
		{ID: 1, Name: "Ann"},
		{ID: 2, Name: "Bob"},
	}))
	books := New[book](s)
	require.NoError(t, books.InsertMany(ctx, []*book{
		{ID: 1, Title: "Go", Year: 2019, AuthorID: 1},
		{ID: 2, Title: "Rust", Year: 2021, AuthorID: 2},
		{ID: 3, Title: "Zig", Year: 2021, AuthorID: 1},
		{ID: 4, Title: "C", Year: 1978, AuthorID: 2},
		{ID: 5, Title: "Lisp", Year: 1960, AuthorID: 1},
	}))
	require.NoError(t, s.Save(ctx))
	return books
}

func ids(books []*book) []int64 {
	out := make([]int64, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}

func TestFindManyNoMatchReturnsEmpty(t *testing.T) {
	books := seeded(t)
	got, err := books.FindMany(context.Background(), &FindOptions{Filter: types.NewQueryFilter("year = ?", 1800)})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	empty := New[book](openSession(t))
	got, err = empty.FindMany(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindManyFilters(t *testing.T) {
	ctx := context.Background()
	books := seeded(t)

	got, err := books.FindManySorted(ctx, &FindOptions{Filter: types.NewQueryFilter("year = ?", 2021)}, "id")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(got))

	got, err = books.FindMany(ctx, &FindOptions{
		Filter: types.NewQueryFilter("year = ?", 2021),
		Where: func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("author_id = ?", 1)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(got))
}

func TestFindManySorted(t *testing.T) {
	ctx := context.Background()
	books := seeded(t)

	got, err := books.FindManySorted(ctx, nil, "year desc, title")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1, 4, 5}, ids(got))

	got, err = books.FindManySorted(ctx, &FindOptions{}, "Title ASC")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 1, 5, 2, 3}, ids(got))

	_, err = books.FindManySorted(ctx, nil, "publisher desc")
	assert.ErrorIs(t, err, types.ErrInvalidSort)

	_, err = books.FindManySorted(ctx, nil, "title upward")
	assert.ErrorIs(t, err, types.ErrInvalidSort)
}

func TestFindManyOrderFunction(t *testing.T) {
	ctx := context.Background()
	books := seeded(t)
	byIDDesc := func(q *bun.SelectQuery) *bun.SelectQuery { return q.Order("id DESC") }

	got, err := books.FindMany(ctx, &FindOptions{OrderBy: byIDDesc})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids(got))

	_, err = books.FindManySorted(ctx, &FindOptions{OrderBy: byIDDesc}, "title")
	assert.ErrorIs(t, err, ErrAmbiguousOrder)

	got, err = books.FindManySorted(ctx, &FindOptions{OrderBy: byIDDesc}, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids(got))
}

func TestFindManySkipTake(t *testing.T) {
	ctx := context.Background()
	books := seeded(t)

	tests := []struct {
		name       string
		skip, take int
		want       []int64
	}{
		{"window", 1, 2, []int64{2, 3}},
		{"skip only", 3, 0, []int64{4, 5}},
		{"take only", 0, 2, []int64{1, 2}},
		{"non positive ignored", -1, -3, []int64{1, 2, 3, 4, 5}},
		{"past the end", 10, 2, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := books.FindManySorted(ctx, &FindOptions{Skip: tt.skip, Take: tt.take}, "id")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFindManyIncludes(t *testing.T) {
	ctx := context.Background()
	books := seeded(t)

	got, err := books.FindManySorted(ctx, &FindOptions{Includes: []string{"Author"}}, "author.name desc, id")
	require.NoError(t, err)
	require.Equal(t, []int64{2, 4, 1, 3, 5}, ids(got))
	for _, b := range got {
		require.NotNil(t, b.Author)
		assert.Equal(t, b.AuthorID, b.Author.ID)
	}
	assert.Equal(t, "Bob", got[0].Author.Name)

	got, err = books.FindMany(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, got[0].Author)
}

func TestFindOne(t *testing.T) {
	ctx := context.Background()
	books := seeded(t)

	got, err := books.FindOne(ctx, types.NewQueryFilter("title = ?", "Go"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)

	got, err = books.FindOne(ctx, types.NewQueryFilter("year = ?", 1800))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = books.FindOne(ctx, types.NewQueryFilter("year = ?", 2021))
	assert.ErrorIs(t, err, ErrMultipleResults)
}

func TestCountAndPage(t *testing.T) {
	ctx := context.Background()
	books := seeded(t)

	n, err := books.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = books.Count(ctx, types.NewQueryFilter("author_id = ?", 1))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := books.Page(ctx, types.NewPageRequestWithSort(2, 2, "id"))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages())
	assert.Equal(t, []int64{3, 4}, ids(page.Items))

	page, err = books.Page(ctx, types.NewPageRequestWithFilter(1, 10, types.NewQueryFilter("year = ?", 1800)))
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)
}

func TestWritesAreVisibleAcrossRepositories(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	writer := New[author](s)
	reader := New[author](s)

	require.NoError(t, writer.InsertOne(ctx, &author{ID: 7, Name: "Eve"}))
	got, err := reader.FindOne(ctx, types.NewQueryFilter("id = ?", 7))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Eve", got.Name)

	got.Name = "Eva"
	require.NoError(t, reader.UpdateOne(ctx, got))
	again, err := writer.FindOne(ctx, types.NewQueryFilter("id = ?", 7))
	require.NoError(t, err)
	assert.Equal(t, "Eva", again.Name)

	require.NoError(t, writer.DeleteMany(ctx, []*author{again}))
	n, err := reader.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInsertManyStopsAtStoreFailure(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	authors := New[author](s)

	require.NoError(t, authors.InsertOne(ctx, &author{ID: 1, Name: "Ann"}))
	err := authors.InsertMany(ctx, []*author{{ID: 1, Name: "dup"}, {ID: 2, Name: "Bob"}})
	require.Error(t, err)
	kind, _ := database.Classify(err)
	assert.Equal(t, database.DuplicateKeyErr, kind)

	got, err := authors.FindOne(ctx, types.NewQueryFilter("id = ?", 2))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	books := seeded(t)

	err := books.Upsert(ctx, []string{"title", "year"}, []string{"id"},
		&book{ID: 1, Title: "Go 2", Year: 2024, AuthorID: 1},
		&book{ID: 6, Title: "Odin", Year: 2016, AuthorID: 2},
	)
	require.NoError(t, err)

	n, err := books.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	got, err := books.FindOne(ctx, types.NewQueryFilter("id = ?", 1))
	require.NoError(t, err)
	assert.Equal(t, "Go 2", got.Title)
	assert.Equal(t, 2024, got.Year)

	assert.Error(t, books.Upsert(ctx, nil, nil, &book{ID: 1}))
	assert.NoError(t, books.Upsert(ctx, []string{"title"}, nil))
}

func TestRegister(t *testing.T) {
	model := database.NewModel()
	require.NoError(t, Register[book](model, 3))
	assert.Error(t, Register[book](model, 3))
	assert.Panics(t, func() { MustRegister[book](model, 3) })
	assert.Error(t, Register[*author](database.NewModel(), 0))
	assert.Panics(t, func() { MustRegister[*author](database.NewModel(), 0) })

	e, ok := model.Lookup(database.TypeKey[book]())
	require.True(t, ok)
	assert.Equal(t, 3, e.Priority)

	s := openSession(t)
	repo, ok := e.New(s).(Repository[book])
	require.True(t, ok)
	assert.Same(t, s, repo.Session())
	assert.NotNil(t, repo.NewSelect())
}

// recordingStore records write verbs and fails the call numbered failAt.
type recordingStore struct {
	calls  []string
	failAt int
	err    error
}

func (r *recordingStore) record(op string, model any) error {
	r.calls = append(r.calls, fmt.Sprintf("%s:%d", op, model.(*book).ID))
	if len(r.calls) == r.failAt {
		return r.err
	}
	return nil
}

func (r *recordingStore) Insert(_ context.Context, model any) error     { return r.record("insert", model) }
func (r *recordingStore) UpdateFull(_ context.Context, model any) error { return r.record("update", model) }
func (r *recordingStore) Delete(_ context.Context, model any) error     { return r.record("delete", model) }

func TestBatchFanOut(t *testing.T) {
	ctx := context.Background()
	e1, e2 := &book{ID: 1}, &book{ID: 2}

	verbs := []struct {
		op  string
		run func(Repository[book]) error
	}{
		{"insert", func(r Repository[book]) error { return r.InsertMany(ctx, []*book{e1, e2}) }},
		{"update", func(r Repository[book]) error { return r.UpdateMany(ctx, []*book{e1, e2}) }},
		{"delete", func(r Repository[book]) error { return r.DeleteMany(ctx, []*book{e1, e2}) }},
	}
	for _, v := range verbs {
		t.Run(v.op+" succeeds in order", func(t *testing.T) {
			store := &recordingStore{}
			require.NoError(t, v.run(&baseRepositoryImpl[book]{store: store}))
			assert.Equal(t, []string{v.op + ":1", v.op + ":2"}, store.calls)
		})
		t.Run(v.op+" stops at first failure", func(t *testing.T) {
			boom := errors.New("store failure")
			store := &recordingStore{failAt: 1, err: boom}
			assert.ErrorIs(t, v.run(&baseRepositoryImpl[book]{store: store}), boom)
			assert.Equal(t, []string{v.op + ":1"}, store.calls)
		})
	}
}

func TestNilEntities(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	repo := &baseRepositoryImpl[book]{store: store}

	assert.ErrorIs(t, repo.InsertOne(ctx, nil), database.ErrNilEntity)
	assert.ErrorIs(t, repo.UpdateOne(ctx, nil), database.ErrNilEntity)
	assert.ErrorIs(t, repo.DeleteOne(ctx, nil), database.ErrNilEntity)
	assert.ErrorIs(t, repo.InsertMany(ctx, []*book{{ID: 1}, nil, {ID: 3}}), database.ErrNilEntity)
	assert.Equal(t, []string{"insert:1"}, store.calls)
	assert.NoError(t, repo.InsertMany(ctx, nil))
}
