// AngelaMos | 2026
// pagination.go

package pagination

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	PageParam       = "page"
	PageSizeParam   = "page_size"
	DefaultPageSize = 25
	MsgInvalidPage  = "Invalid page."

	lastPageKeyword = "last"
)

var ErrInvalidPage = errors.New("invalid page")

// Params is a page request. A bad page number is remembered rather than
// rejected, because an empty result set answers every page with an empty
// first page.
type Params struct {
	Page     int
	PageSize int

	last    bool
	invalid bool
}

func ParseParams(q url.Values, defaultSize int) Params {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}

	p := Params{Page: 1, PageSize: defaultSize}

	if raw := q.Get(PageSizeParam); raw != "" {
		if size, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && size > 0 {
			p.PageSize = size
		}
	}

	raw, ok := q[PageParam]
	if !ok || len(raw) == 0 {
		return p
	}

	value := strings.TrimSpace(raw[0])
	if value == lastPageKeyword {
		p.last = true
		return p
	}

	page, err := strconv.Atoi(value)
	if err != nil || page < 1 {
		p.invalid = true
		return p
	}
	p.Page = page

	return p
}

func NumPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// Resolve checks the requested page against the total count and returns
// the concrete page to fetch.
func (p Params) Resolve(count int) (Params, error) {
	if count <= 0 {
		p.Page = 1
		p.last = false
		p.invalid = false
		return p, nil
	}

	if p.invalid {
		return p, ErrInvalidPage
	}

	pages := NumPages(count, p.PageSize)
	if p.last {
		p.Page = pages
		p.last = false
	}

	if p.Page < 1 || p.Page > pages {
		return p, ErrInvalidPage
	}

	return p, nil
}

func (p Params) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

func (p Params) Limit() int {
	return p.PageSize
}

// Page is the list response envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func NewPage[T any](r *http.Request, p Params, count int, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}

	page := Page[T]{Count: count, Results: results}
	if count == 0 {
		return page
	}

	if p.Page < NumPages(count, p.PageSize) {
		next := pageURL(r, p.Page+1)
		page.Next = &next
	}

	if p.Page > 1 {
		prev := pageURL(r, p.Page-1)
		page.Previous = &prev
	}

	return page
}

func pageURL(r *http.Request, page int) string {
	u := url.URL{
		Scheme: requestScheme(r),
		Host:   r.Host,
		Path:   r.URL.Path,
	}

	q := r.URL.Query()
	if page <= 1 {
		q.Del(PageParam)
	} else {
		q.Set(PageParam, strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
