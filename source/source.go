// Package source defines the document-value-extraction collaborator: backends that fetch the
// timestamps and numeric field values the histogram engine aggregates over.
package source

import (
	"context"

	"hermannm.dev/datehistogram/histogram"
)

// Query identifies the documents to aggregate: a table (or index), the date field providing bucket
// timestamps, and the numeric fields read by sub-aggregation metrics.
type Query struct {
	Table         string
	DateField     string
	NumericFields []string
}

type DocumentSource interface {
	// FetchDocuments returns one Document per stored document, with the date field's values
	// parsed to UTC milliseconds. A table with no matching documents gives an empty slice, not an
	// error.
	FetchDocuments(ctx context.Context, query Query) ([]histogram.Document, error)
}
