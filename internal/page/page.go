// Package page implements page/limit pagination shared by list endpoints and the
// returns engine.
package page

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

type Params struct {
	Page  int
	Limit int
}

type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// Result is the `{data, meta}` envelope returned by paginated endpoints.
type Result[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// Parse reads page and limit from the query. Missing or non-positive values fall back
// to page 1 and defLimit; limit is capped at maxLimit.
func Parse(q url.Values, defLimit, maxLimit int) Params {
	p := Params{Page: 1, Limit: defLimit}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil && n > 0 {
		p.Limit = n
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset is the number of items before page p. It saturates at math.MaxInt so a
// huge page lands past the end instead of wrapping around.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

func (p Params) Meta(total int64) Meta {
	return Meta{
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: TotalPages(total, p.Limit),
	}
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// Slice returns the window of items for p. A page past the end yields an empty,
// non-nil slice.
func Slice[T any](items []T, p Params) []T {
	start := p.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func New[T any](items []T, p Params, total int64) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{Data: items, Meta: p.Meta(total)}
}
