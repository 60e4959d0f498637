// Package pagination parses page query parameters and builds page metadata.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params is a requested page. Page is 1-based.
type Params struct {
	Page     int
	PageSize int
}

// Offset returns the row offset for the page.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// FromQuery reads page and pageSize (or limit) from the request query.
func FromQuery(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	if size == 0 {
		size, _ = strconv.Atoi(c.Query("limit"))
	}
	return Normalize(page, size)
}

// Normalize applies defaults and bounds.
func Normalize(page, size int) Params {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Params{Page: page, PageSize: size}
}

// Meta is returned next to a page of items.
type Meta struct {
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
}

// NewMeta computes metadata for total items. An empty result has zero pages and current page 0.
func NewMeta(p Params, total int) Meta {
	p = Normalize(p.Page, p.PageSize)
	if total <= 0 {
		return Meta{PageSize: p.PageSize}
	}
	pages := (total + p.PageSize - 1) / p.PageSize
	current := p.Page
	if current > pages {
		current = pages
	}
	return Meta{TotalItems: total, TotalPages: pages, CurrentPage: current, PageSize: p.PageSize}
}

// Clamp moves the requested page inside [1, totalPages] so the offset matches the returned meta.
func Clamp(p Params, total int) Params {
	m := NewMeta(p, total)
	if m.CurrentPage == 0 {
		return Params{Page: 1, PageSize: m.PageSize}
	}
	return Params{Page: m.CurrentPage, PageSize: m.PageSize}
}
