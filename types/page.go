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

package types

// QueryFilter describes a WHERE clause schema and its argument values,
// e.g. NewQueryFilter("status = ? AND age > ?", "active", 18).
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// IsEmpty reports whether the filter constrains nothing.
func (f *QueryFilter) IsEmpty() bool {
	return f == nil || f.Schema == ""
}

// PageRequest describes a page of results, an optional filter and an
// ordering expression understood by ParseSort.
type PageRequest struct {
	page     int
	pageSize int
	filter   *QueryFilter
	sort     string // "id asc, name desc"
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = 10
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetFilter() *QueryFilter {
	return p.filter
}

func (p *PageRequest) GetSort() string {
	return p.sort
}

// NewPageRequest constructs a PageRequest with filter and ordering.
func NewPageRequest(page int, pageSize int, filter *QueryFilter, sort string) *PageRequest {
	return &PageRequest{page, pageSize, filter, sort}
}

// NewDefaultPageRequest returns the first page with the default size.
func NewDefaultPageRequest() *PageRequest {
	return &PageRequest{page: 1, pageSize: 10}
}

// NewPageRequestWithFilter constructs a PageRequest with a filter only.
func NewPageRequestWithFilter(page int, pageSize int, filter *QueryFilter) *PageRequest {
	return NewPageRequest(page, pageSize, filter, "")
}

// NewPageRequestWithSort constructs a PageRequest with ordering only.
func NewPageRequestWithSort(page int, pageSize int, sort string) *PageRequest {
	return NewPageRequest(page, pageSize, nil, sort)
}

// Pagination holds one page of items and the total match count.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{page, pageSize, 0, make([]*T, 0)}
}

// Pages returns the number of pages needed for Total items.
func (p *Pagination[T]) Pages() int {
	if p.PageSize < 1 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}
