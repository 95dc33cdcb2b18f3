// Package backend is the typed client for the hosted database's table API.
// Every request carries the caller's backend-scoped bearer token; the
// backend's row-level policies decide what each token may see or modify.
package backend

import "context"

type (
	// Row is one table row as returned by the backend, column name to value.
	Row = map[string]any

	// Filter is an equality filter on a column.
	Filter struct {
		Column string
		Value  string
	}

	// Query describes a read against one table.
	Query struct {
		Table      string
		Columns    string // select list, may include embedded resources
		Filters    []Filter
		OrderBy    string
		Descending bool
		Limit      int
	}

	// Write describes an insert or upsert against one table.
	Write struct {
		Table string
		Rows  []Row
		// OnConflict names the conflict target columns for an upsert,
		// comma-separated.
		OnConflict string
		// Returning is the select list echoed back for written rows. Empty
		// means the backend returns no representation.
		Returning string
	}

	// Client executes table operations. The operation set is fixed so that
	// decorators can wrap execution without reflecting over builder chains.
	Client interface {
		Select(ctx context.Context, q Query) ([]Row, error)
		Insert(ctx context.Context, w Write) ([]Row, error)
		Upsert(ctx context.Context, w Write) ([]Row, error)
		Delete(ctx context.Context, table string, filters ...Filter) error
	}
)

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}
