package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams returns page 1 with the default page size.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Offset returns the number of rows to skip for this page.
func (p Params) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Normalize clamps out-of-range values to the defaults and the maximum page size.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// FromRequest reads page and per_page from the query string. Absent values
// take the defaults; present but invalid values are an error so handlers can
// answer 400 instead of silently serving a different page.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return p, fmt.Errorf("page must be a valid positive integer")
		}
		p.Page = page
	}

	if v := q.Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 || perPage > MaxPerPage {
			return p, fmt.Errorf("per_page must be a valid integer between 1 and %d", MaxPerPage)
		}
		p.PerPage = perPage
	}

	return p, nil
}
