// Package pagination reads listing parameters for the bounce API from URL query
// strings: page, limit, sort order and the code/search filters.
package pagination

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Params is the listing request after defaults and limits are applied.
type Params struct {
	Page   int32  // 1-based page number
	Limit  int32  // rows per page
	Offset int32  // derived from Page and Limit
	Sort   string // "newest", "oldest", "asc" or "desc"
	Code   string // exact bounce code filter, empty for all
	Search string // substring filter on recipient, reason and subject
}

const (
	MaxLimit     int32 = 100
	DefaultPage  int32 = 1
	DefaultLimit int32 = 25
	DefaultSort        = "newest"

	// MaxPage keeps (page-1)*limit inside int32 for every allowed limit.
	MaxPage = math.MaxInt32/MaxLimit + 1
)

func offsetFor(page, limit int32) int32 {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return (page - 1) * limit
}

func isValidSort(sort string) bool {
	switch sort {
	case "newest", "oldest", "asc", "desc":
		return true
	default:
		return false
	}
}

// Option adjusts the defaults before the query is read.
type Option func(*Params)

// WithDefaultLimit ignores non-positive limits.
func WithDefaultLimit(limit int32) Option {
	return func(p *Params) {
		if limit > 0 {
			p.Limit = limit
		}
	}
}

// WithDefaultSort ignores unknown sort orders.
func WithDefaultSort(sort string) Option {
	return func(p *Params) {
		if isValidSort(sort) {
			p.Sort = sort
		}
	}
}

// FromQuery extracts listing parameters from q. Invalid values fall back to the
// defaults and the limit is capped at MaxLimit.
func FromQuery(q url.Values, opts ...Option) Params {
	params := Params{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  DefaultSort,
	}
	for _, opt := range opts {
		opt(&params)
	}

	if val, err := strconv.ParseInt(q.Get("page"), 10, 32); err == nil && val > 0 {
		params.Page = int32(min(val, int64(MaxPage)))
	}
	if val, err := strconv.ParseInt(q.Get("limit"), 10, 32); err == nil && val > 0 {
		params.Limit = int32(val)
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	params.Offset = offsetFor(params.Page, params.Limit)

	if sort := q.Get("sort"); isValidSort(sort) {
		params.Sort = sort
	}
	params.Code = strings.TrimSpace(q.Get("code"))
	params.Search = strings.TrimSpace(q.Get("search"))
	return params
}

// HasNext reports whether rows remain after the current page.
func HasNext(offset, limit, count int32) bool {
	return int64(offset)+int64(limit) < int64(count)
}
