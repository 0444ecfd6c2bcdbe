// Package elasticsearch implements a document source backed by Elasticsearch.
package elasticsearch

import (
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/datehistogram/config"
	"hermannm.dev/datehistogram/histogram"
	"hermannm.dev/datehistogram/source"
	"hermannm.dev/wrap"
)

type ElasticsearchSource struct {
	client *elasticsearch.TypedClient
}

func NewElasticsearchSource(config config.Config) (ElasticsearchSource, error) {
	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses:         []string{config.Elasticsearch.Address},
		EnableDebugLogger: config.Elasticsearch.Debug,
	})
	if err != nil {
		return ElasticsearchSource{}, wrap.Error(err, "failed to connect to Elasticsearch")
	}

	return ElasticsearchSource{client: client}, nil
}

// Number of documents fetched per search request. Larger result sets should move to the scroll
// API; for now we cap at Elasticsearch's default window.
const searchPageSize = 10_000

// FetchDocuments searches the index and extracts the date field (single- or multi-valued) and
// numeric fields from each document's source. Unparseable date values fail the whole request.
func (elastic ElasticsearchSource) FetchDocuments(
	ctx context.Context,
	query source.Query,
) ([]histogram.Document, error) {
	pageSize := searchPageSize
	response, err := elastic.client.Search().Index(query.Table).Request(&search.Request{
		Size:  &pageSize,
		Query: &types.Query{MatchAll: &types.MatchAllQuery{}},
	}).Do(ctx)
	if err != nil {
		return nil, wrapElasticError(err, "document search request failed")
	}

	documents := make([]histogram.Document, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(hit.Source_, &fields); err != nil {
			return nil, wrap.Error(err, "failed to parse document source")
		}

		document, err := documentFromSource(fields, query)
		if err != nil {
			return nil, err
		}
		if len(document.Timestamps) == 0 {
			// Documents without the date field produce no buckets.
			continue
		}
		documents = append(documents, document)
	}

	return documents, nil
}

func documentFromSource(
	fields map[string]json.RawMessage,
	query source.Query,
) (histogram.Document, error) {
	document := histogram.Document{Fields: make(map[string]float64, len(query.NumericFields))}

	if rawDate, hasDate := fields[query.DateField]; hasDate {
		timestamps, err := parseTimestamps(rawDate)
		if err != nil {
			return histogram.Document{}, err
		}
		document.Timestamps = timestamps
	}

	for _, field := range query.NumericFields {
		rawValue, hasValue := fields[field]
		if !hasValue {
			continue
		}
		var value float64
		if err := json.Unmarshal(rawValue, &value); err != nil {
			return histogram.Document{}, wrap.Errorf(
				err, "failed to parse numeric field '%s'", field,
			)
		}
		document.Fields[field] = value
	}

	return document, nil
}

func parseTimestamps(rawDate json.RawMessage) ([]int64, error) {
	var values []any
	if err := json.Unmarshal(rawDate, &values); err != nil {
		// Not an array, so a single-valued date field.
		var value any
		if err := json.Unmarshal(rawDate, &value); err != nil {
			return nil, wrap.Error(err, "failed to parse date field")
		}
		values = []any{value}
	}

	timestamps := make([]int64, 0, len(values))
	for _, value := range values {
		timestamp, err := histogram.ParseTimestamp(value)
		if err != nil {
			return nil, err
		}
		timestamps = append(timestamps, timestamp)
	}
	return timestamps, nil
}
