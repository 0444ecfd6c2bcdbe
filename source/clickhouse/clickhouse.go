// Package clickhouse implements a document source backed by ClickHouse.
package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"hermannm.dev/datehistogram/config"
	"hermannm.dev/datehistogram/histogram"
	"hermannm.dev/datehistogram/source"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

type ClickHouseSource struct {
	conn driver.Conn
}

func NewClickHouseSource(config config.Config) (ClickHouseSource, error) {
	// Options docs: https://clickhouse.com/docs/en/integrations/go#connection-settings
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.ClickHouse.Address},
		Auth: clickhouse.Auth{
			Database: config.ClickHouse.DatabaseName,
			Username: config.ClickHouse.Username,
			Password: config.ClickHouse.Password,
		},
		Debug: config.ClickHouse.Debug,
		Debugf: func(format string, v ...any) {
			log.Debug(fmt.Sprintf(format, v...))
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return ClickHouseSource{}, wrap.Error(err, "failed to connect to ClickHouse")
	}

	if err := conn.Ping(context.Background()); err != nil {
		return ClickHouseSource{}, wrap.Error(err, "failed to ping ClickHouse connection")
	}

	return ClickHouseSource{conn: conn}, nil
}

// FetchDocuments selects the date field and numeric fields for every row in the table. The date
// field must be a DateTime column, and numeric fields Float64 columns.
func (clickhouse ClickHouseSource) FetchDocuments(
	ctx context.Context,
	query source.Query,
) ([]histogram.Document, error) {
	queryString, err := buildDocumentQueryString(query)
	if err != nil {
		return nil, wrap.Error(err, "invalid document query")
	}

	rows, err := clickhouse.conn.Query(ctx, queryString)
	if err != nil {
		return nil, wrap.Error(err, "failed to execute query against ClickHouse")
	}
	defer rows.Close()

	var documents []histogram.Document
	for rows.Next() {
		var timestamp time.Time
		fieldValues := make([]float64, len(query.NumericFields))

		scanTargets := make([]any, 0, len(fieldValues)+1)
		scanTargets = append(scanTargets, &timestamp)
		for i := range fieldValues {
			scanTargets = append(scanTargets, &fieldValues[i])
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, wrap.Error(err, "failed to scan document row")
		}

		document := histogram.Document{
			Timestamps: []int64{timestamp.UnixMilli()},
			Fields:     make(map[string]float64, len(query.NumericFields)),
		}
		for i, field := range query.NumericFields {
			document.Fields[field] = fieldValues[i]
		}
		documents = append(documents, document)
	}

	return documents, nil
}

func buildDocumentQueryString(query source.Query) (string, error) {
	identifiers := append([]string{query.Table, query.DateField}, query.NumericFields...)
	if err := validateIdentifiers(identifiers...); err != nil {
		return "", wrap.Error(err, "invalid table/field name in query")
	}

	var builder strings.Builder
	builder.WriteString("SELECT ")
	writeIdentifier(&builder, query.DateField)
	for _, field := range query.NumericFields {
		builder.WriteString(", ")
		writeIdentifier(&builder, field)
	}
	builder.WriteString(" FROM ")
	writeIdentifier(&builder, query.Table)

	return builder.String(), nil
}

// Must only be called after validateIdentifiers on the given identifier.
func writeIdentifier(builder *strings.Builder, identifier string) {
	builder.WriteRune('`')
	builder.WriteString(identifier)
	builder.WriteRune('`')
}

func validateIdentifiers(identifiers ...string) error {
	for _, identifier := range identifiers {
		if identifier == "" {
			return fmt.Errorf("identifier is empty")
		}
		if strings.ContainsRune(identifier, '`') {
			return fmt.Errorf("'%s' contains `, which is incompatible with database", identifier)
		}
	}
	return nil
}
