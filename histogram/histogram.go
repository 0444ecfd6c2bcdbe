// Package histogram implements a date histogram aggregation engine: it buckets document
// timestamps into fixed-width or calendar-aware intervals in a target time zone, attaches
// sub-aggregation results to each bucket, optionally widens the result to requested bounds, and
// returns the buckets in a caller-selected order.
package histogram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hermannm.dev/datehistogram/dateformat"
	"hermannm.dev/wrap"
)

// Options is the configuration surface of one date histogram aggregation.
type Options struct {
	// Interval specification, e.g. "month", "1d" or "90m". Required.
	Interval string `json:"interval"`
	// Time zone identifier: a tz database name ("Europe/Oslo") or fixed offset ("+01:00").
	// Defaults to UTC.
	TimeZone string `json:"timeZone,omitempty"`
	// Offset shifting the bucket grid, e.g. "+6h" or "-30m".
	Offset string `json:"offset,omitempty"`
	// Date pattern for bucket key formatting, e.g. "yyyy-MM-dd" or "epoch_millis".
	Format string `json:"format,omitempty"`
	// Buckets with fewer documents are omitted from the result. 0 additionally fills every
	// interval gap with empty buckets.
	MinDocCount int64 `json:"minDocCount"`
	// Bounds the result must cover contiguously, regardless of document population.
	ExtendedBounds *ExtendedBounds `json:"extendedBounds,omitempty"`
	// Ordering criteria in priority order; defaults to ascending bucket key.
	Orders []BucketOrder `json:"order,omitempty"`
}

// Histogram is a fully validated aggregation, safe to run concurrently from independent requests
// (each run owns its own bucket state).
type Histogram struct {
	rounder     Rounder
	framework   SubAggregationFramework
	formatter   dateformat.Formatter
	minDocCount int64
	bounds      *ExtendedBounds
	orders      []BucketOrder
}

// New validates the full configuration before any document is processed, so invalid requests fail
// fast. The framework computes per-bucket sub-aggregations, and may be nil.
func New(options Options, framework SubAggregationFramework) (*Histogram, error) {
	interval, err := ParseInterval(options.Interval)
	if err != nil {
		return nil, err
	}

	offset, err := parseOffset(options.Offset)
	if err != nil {
		return nil, err
	}

	rounder, err := NewRounder(interval, options.TimeZone, offset)
	if err != nil {
		return nil, err
	}

	formatter, err := dateformat.New(options.Format, rounder.Location())
	if err != nil {
		return nil, err
	}

	if options.MinDocCount < 0 {
		return nil, fmt.Errorf("minDocCount cannot be negative (got %d)", options.MinDocCount)
	}

	for _, order := range options.Orders {
		if !order.Target.IsValid() {
			return nil, InvalidOrderPathError{Path: order.Path, Reason: "invalid order target"}
		}
		if !order.SortOrder.IsValid() {
			return nil, InvalidOrderPathError{Path: order.Path, Reason: "invalid sort order"}
		}
		if order.Target == OrderTargetAggregation && order.Path == "" {
			return nil, InvalidOrderPathError{Path: "", Reason: "order path is empty"}
		}
	}

	return &Histogram{
		rounder:     rounder,
		framework:   framework,
		formatter:   formatter,
		minDocCount: options.MinDocCount,
		bounds:      options.ExtendedBounds,
		orders:      options.Orders,
	}, nil
}

func (histogram *Histogram) Rounder() Rounder {
	return histogram.rounder
}

// NewCollector creates a collector for one (partial) document batch. Parallel units must each use
// their own collector and merge afterwards.
func (histogram *Histogram) NewCollector() *Collector {
	return NewCollector(histogram.rounder, histogram.framework)
}

// Run aggregates the documents into the final ordered bucket sequence.
func (histogram *Histogram) Run(documents []Document) ([]Bucket, error) {
	collector := histogram.NewCollector()
	for _, document := range documents {
		collector.Collect(document)
	}
	return histogram.Finalize(collector)
}

// RunParallel is Run with document collection fanned out over the given number of workers.
func (histogram *Histogram) RunParallel(documents []Document, workers int) ([]Bucket, error) {
	collector := histogram.NewCollector()
	if err := collector.CollectParallel(documents, workers); err != nil {
		return nil, wrap.Error(err, "parallel document collection failed")
	}
	return histogram.Finalize(collector)
}

// Finalize turns collected (and possibly merged) bucket state into the final sequence: empty
// buckets filled in, keys formatted, buckets ordered.
func (histogram *Histogram) Finalize(collector *Collector) ([]Bucket, error) {
	buckets, err := collector.buildBuckets(histogram.minDocCount, histogram.bounds)
	if err != nil {
		return nil, err
	}

	for i := range buckets {
		buckets[i].KeyAsString = histogram.formatter.Format(buckets[i].Key)
	}

	if err := SortBuckets(buckets, histogram.orders); err != nil {
		return nil, err
	}
	return buckets, nil
}

// parseOffset parses a signed duration like "+6h", "-30m" or "1d" (no sign means positive).
func parseOffset(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	remainder := raw
	negative := false
	if strings.HasPrefix(remainder, "+") {
		remainder = remainder[1:]
	} else if strings.HasPrefix(remainder, "-") {
		negative = true
		remainder = remainder[1:]
	}

	numberEnd := 0
	for numberEnd < len(remainder) && remainder[numberEnd] >= '0' && remainder[numberEnd] <= '9' {
		numberEnd++
	}

	number, err := strconv.ParseInt(remainder[:numberEnd], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset '%s': expected a fixed duration like '+6h'", raw)
	}

	unitDuration, recognized := fixedUnitDurations[remainder[numberEnd:]]
	if !recognized {
		return 0, fmt.Errorf(
			"invalid offset '%s': unrecognized unit '%s'", raw, remainder[numberEnd:],
		)
	}

	offset := time.Duration(number) * unitDuration
	if negative {
		return -offset, nil
	}
	return offset, nil
}
