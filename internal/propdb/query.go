package propdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentic-research/facet/api"
)

// Row is one result row of an ad-hoc query: the column order as returned by
// the store, plus the typed value for each column.
type Row struct {
	Columns []string
	Values  map[string]api.Value
}

// Get returns the value of one column, or the null marker when the column is
// not part of the result set.
func (r Row) Get(column string) api.Value {
	if v, ok := r.Values[column]; ok {
		return v
	}
	return api.Null
}

// Query executes an arbitrary parameterized read query. Parameters are
// always bound, never spliced into the query text. The caller's query text
// determines what runs; no semantic validation happens here.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query text: %w", ErrInvalidArgument)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ad-hoc query: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("ad-hoc query columns: %w", err)
	}

	var out []Row
	scan := make([]any, len(cols))
	for rows.Next() {
		raw := make([]any, len(cols))
		for i := range raw {
			scan[i] = &raw[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan ad-hoc row: %w", err)
		}
		row := Row{Columns: cols, Values: make(map[string]api.Value, len(cols))}
		for i, col := range cols {
			row.Values[col] = driverValue(raw[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// driverValue types a raw driver value into the closed value union.
func driverValue(v any) api.Value {
	switch x := v.(type) {
	case nil:
		return api.Null
	case int64:
		return api.IntValue(x)
	case float64:
		return api.RealValue(x)
	case string:
		return api.StringValue(x)
	case []byte:
		return api.StringValue(string(x))
	case bool:
		if x {
			return api.IntValue(1)
		}
		return api.IntValue(0)
	default:
		return api.StringValue(fmt.Sprint(x))
	}
}
