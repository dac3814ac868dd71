// Package pagination reads page/limit query parameters and shapes paged listings.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a clamped page request. Page is 1-based.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse never fails: junk or out-of-range values fall back to the defaults, and limits
// above MaxLimit are capped.
func Parse(c *gin.Context) Params {
	return New(queryInt(c, "page"), queryInt(c, "limit"))
}

// New clamps page and limit the same way Parse does.
func New(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// TotalPages is how many pages of p.Limit items hold total items.
func (p Params) TotalPages(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return (total + int64(p.Limit) - 1) / int64(p.Limit)
}

// Listing puts items under key next to the paging metadata.
func (p Params) Listing(key string, items any, total int64) gin.H {
	return gin.H{
		key:          items,
		"total":      total,
		"page":       p.Page,
		"limit":      p.Limit,
		"totalPages": p.TotalPages(total),
	}
}

func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}
