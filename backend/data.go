package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// DataClient reads and writes tenant-scoped tables through the provider's
// uniform query interface. Every query against tenant data must carry an
// Eq("tenant_id", ...) filter; the repos in the domain packages enforce
// that.
type DataClient struct {
	client *Client
}

// Direction orders query results.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

type filter struct {
	column string
	op     string
	value  string
}

// Query accumulates filters and modifiers for a single table operation.
// Build it with From and the chainable methods, then finish with Get,
// Insert, Update or Delete.
type Query struct {
	data    *DataClient
	table   string
	selects string
	filters []filter
	orderBy string
	order   Direction
	limit   int
	offset  int
}

// From starts a query against the named table.
func (d *DataClient) From(table string) *Query {
	return &Query{data: d, table: table, selects: "*"}
}

// Select restricts the returned columns.
func (q *Query) Select(columns string) *Query {
	q.selects = columns
	return q
}

// Eq filters rows where column equals value.
func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, filter{column: column, op: "eq", value: fmt.Sprint(value)})
	return q
}

// In filters rows where column is one of values.
func (q *Query) In(column string, values ...string) *Query {
	q.filters = append(q.filters, filter{column: column, op: "in", value: "(" + strings.Join(values, ",") + ")"})
	return q
}

// Gte filters rows where column is greater than or equal to value.
func (q *Query) Gte(column string, value any) *Query {
	q.filters = append(q.filters, filter{column: column, op: "gte", value: fmt.Sprint(value)})
	return q
}

// Lte filters rows where column is less than or equal to value.
func (q *Query) Lte(column string, value any) *Query {
	q.filters = append(q.filters, filter{column: column, op: "lte", value: fmt.Sprint(value)})
	return q
}

// Order sorts the result by column in the given direction.
func (q *Query) Order(column string, direction Direction) *Query {
	q.orderBy = column
	q.order = direction
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

func (q *Query) path() string {
	params := url.Values{}
	params.Set("select", q.selects)
	for _, f := range q.filters {
		// Repeated column params are ANDed by the data API, so a gte and
		// an lte on the same column form a range.
		params.Add(f.column, f.op+"."+f.value)
	}
	if q.orderBy != "" {
		params.Set("order", q.orderBy+"."+string(q.order))
	}
	if q.limit > 0 {
		params.Set("limit", fmt.Sprint(q.limit))
	}
	if q.offset > 0 {
		params.Set("offset", fmt.Sprint(q.offset))
	}
	return "/rest/v1/" + q.table + "?" + params.Encode()
}

// Get executes the query and decodes the rows into out (a pointer to a
// slice of row structs).
func (q *Query) Get(ctx context.Context, accessToken string, out any) error {
	if err := q.data.client.do(ctx, http.MethodGet, q.path(), accessToken, nil, out); err != nil {
		return errors.Wrapf(err, "[Query.Get] table %q", q.table)
	}
	return nil
}

// Insert adds rows to the table. rows may be a single struct or a slice.
func (q *Query) Insert(ctx context.Context, accessToken string, rows any) error {
	if err := q.data.client.do(ctx, http.MethodPost, q.path(), accessToken, rows, nil); err != nil {
		return errors.Wrapf(err, "[Query.Insert] table %q", q.table)
	}
	return nil
}

// Update patches the rows matched by the accumulated filters.
func (q *Query) Update(ctx context.Context, accessToken string, changes any) error {
	if len(q.filters) == 0 {
		return errors.Errorf("[Query.Update] refusing unfiltered update of table %q", q.table)
	}
	if err := q.data.client.do(ctx, http.MethodPatch, q.path(), accessToken, changes, nil); err != nil {
		return errors.Wrapf(err, "[Query.Update] table %q", q.table)
	}
	return nil
}

// Delete removes the rows matched by the accumulated filters.
func (q *Query) Delete(ctx context.Context, accessToken string) error {
	if len(q.filters) == 0 {
		return errors.Errorf("[Query.Delete] refusing unfiltered delete of table %q", q.table)
	}
	if err := q.data.client.do(ctx, http.MethodDelete, q.path(), accessToken, nil, nil); err != nil {
		return errors.Wrapf(err, "[Query.Delete] table %q", q.table)
	}
	return nil
}
