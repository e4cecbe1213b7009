package pagination

import (
	"context"
	"encoding/json"
)

// Page is a single slice of an ordered listing together with its metadata
type Page[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalCount  int `json:"totalCount"`
	TotalPages  int `json:"totalPages"`
}

// Source is an already ordered listing that can be counted and sliced
type Source[T any] interface {
	Count(ctx context.Context) (int, error)
	Slice(ctx context.Context, offset, limit int) ([]T, error)
}

// Paginate counts src first and then takes pageSize items after skipping (pageNumber-1)*pageSize.
// pageNumber and pageSize must be validated by the caller (see ClampParams).
// A page past the end yields no items but keeps TotalCount and TotalPages.
func Paginate[T any](ctx context.Context, src Source[T], pageNumber, pageSize int) (Page[T], error) {
	count, err := src.Count(ctx)
	if err != nil {
		return Page[T]{}, err
	}

	items, err := src.Slice(ctx, (pageNumber-1)*pageSize, pageSize)
	if err != nil {
		return Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:       items,
		CurrentPage: pageNumber,
		PageSize:    pageSize,
		TotalCount:  count,
		TotalPages:  TotalPages(count, pageSize),
	}, nil
}

// TotalPages returns ceil(count/pageSize)
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// Header is the pagination metadata sent in the "Pagination" response header
type Header struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalCount  int `json:"totalCount"`
	TotalPages  int `json:"totalPages"`
}

// Header returns metadata of p
func (p Page[T]) Header() Header {
	return Header{
		CurrentPage: p.CurrentPage,
		PageSize:    p.PageSize,
		TotalCount:  p.TotalCount,
		TotalPages:  p.TotalPages,
	}
}

// String renders h as compact JSON
func (h Header) String() string {
	b, _ := json.Marshal(h)
	return string(b)
}

// Map converts page items with f keeping metadata untouched
func Map[T, U any](p Page[T], f func(T) U) Page[U] {
	items := make([]U, len(p.Items))
	for i, v := range p.Items {
		items[i] = f(v)
	}
	return Page[U]{
		Items:       items,
		CurrentPage: p.CurrentPage,
		PageSize:    p.PageSize,
		TotalCount:  p.TotalCount,
		TotalPages:  p.TotalPages,
	}
}
