package nimbus

import (
	"net/url"
	"strconv"
)

// QueryParams expresses common list options for collection endpoints.
type QueryParams struct {
	Page    int
	PerPage int
	Cursor  string
	OrderBy string
	Filters url.Values
}

// NewQueryParams creates an empty QueryParams.
func NewQueryParams() *QueryParams {
	return &QueryParams{Filters: url.Values{}}
}

// WithPage sets the page number.
func (q *QueryParams) WithPage(page int) *QueryParams {
	q.Page = page

	return q
}

// WithPerPage sets the page size.
func (q *QueryParams) WithPerPage(perPage int) *QueryParams {
	q.PerPage = perPage

	return q
}

// WithCursor sets the continuation token for cursor-paginated endpoints.
func (q *QueryParams) WithCursor(cursor string) *QueryParams {
	q.Cursor = cursor

	return q
}

// WithOrderBy sets the sort field.
func (q *QueryParams) WithOrderBy(field string) *QueryParams {
	q.OrderBy = field

	return q
}

// WithFilter adds a filter value.
func (q *QueryParams) WithFilter(key, value string) *QueryParams {
	if q.Filters == nil {
		q.Filters = url.Values{}
	}

	q.Filters.Add(key, value)

	return q
}

// ToValues converts the params to url.Values for the request query string.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}

	if q == nil {
		return values
	}

	for key, vals := range q.Filters {
		for _, v := range vals {
			values.Add(key, v)
		}
	}

	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}

	if q.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(q.PerPage))
	}

	if q.Cursor != "" {
		values.Set("cursor", q.Cursor)
	}

	if q.OrderBy != "" {
		values.Set("order_by", q.OrderBy)
	}

	return values
}
