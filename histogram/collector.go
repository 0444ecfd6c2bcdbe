package histogram

import (
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/sync/errgroup"
	"hermannm.dev/wrap"
)

// Document is one document's contribution to the aggregation: one or more timestamps (UTC
// milliseconds) from its date field, plus the numeric field values read by sub-aggregations.
// A document with multiple timestamps contributes to each distinct bucket they round to, but only
// once per bucket.
type Document struct {
	Timestamps []int64
	Fields     map[string]float64
}

// SubAggregations is the narrow read interface the engine has into sub-aggregation results:
// resolving a named path to a scalar, for bucket ordering. Implementations own the actual result
// structure.
type SubAggregations interface {
	// ResolveScalar returns false when the path does not address a single numeric value.
	ResolveScalar(path string) (float64, bool)
}

// SubAggregationState accumulates one bucket's sub-aggregation results during collection.
type SubAggregationState interface {
	Collect(document Document)
	// Merge folds another partial state for the same bucket into this one. It must be commutative,
	// so that partial collectors can merge in any order.
	Merge(other SubAggregationState) error
	Finalize() SubAggregations
}

// SubAggregationFramework creates per-bucket sub-aggregation state. The zero state (created and
// immediately finalized) is what synthesized empty buckets carry.
type SubAggregationFramework interface {
	NewBucketState() SubAggregationState
}

type bucketState struct {
	docCount int64
	subAggs  SubAggregationState
}

// Collector routes documents to buckets and accumulates per-bucket document counts and
// sub-aggregation state. It is not safe for concurrent use; for parallel collection, give each
// goroutine its own Collector and merge afterwards (see CollectParallel).
type Collector struct {
	rounder   Rounder
	framework SubAggregationFramework
	buckets   map[int64]*bucketState
}

func NewCollector(rounder Rounder, framework SubAggregationFramework) *Collector {
	return &Collector{
		rounder:   rounder,
		framework: framework,
		buckets:   make(map[int64]*bucketState),
	}
}

func (collector *Collector) Collect(document Document) {
	if len(document.Timestamps) == 1 {
		collector.collectIntoBucket(collector.rounder.RoundDown(document.Timestamps[0]), document)
		return
	}

	// Multi-valued date fields count once per distinct bucket per document.
	var seen []int64
timestamps:
	for _, timestamp := range document.Timestamps {
		key := collector.rounder.RoundDown(timestamp)
		for _, seenKey := range seen {
			if seenKey == key {
				continue timestamps
			}
		}
		seen = append(seen, key)
		collector.collectIntoBucket(key, document)
	}
}

func (collector *Collector) collectIntoBucket(key int64, document Document) {
	bucket, exists := collector.buckets[key]
	if !exists {
		bucket = &bucketState{}
		if collector.framework != nil {
			bucket.subAggs = collector.framework.NewBucketState()
		}
		collector.buckets[key] = bucket
	}

	bucket.docCount++
	if bucket.subAggs != nil {
		bucket.subAggs.Collect(document)
	}
}

// Merge folds another collector's buckets into this one, summing document counts for shared keys.
// Merging is commutative and associative, so partial collectors from parallel collection can be
// combined in any order.
func (collector *Collector) Merge(other *Collector) error {
	for key, otherBucket := range other.buckets {
		bucket, exists := collector.buckets[key]
		if !exists {
			collector.buckets[key] = otherBucket
			continue
		}

		bucket.docCount += otherBucket.docCount
		if bucket.subAggs != nil && otherBucket.subAggs != nil {
			if err := bucket.subAggs.Merge(otherBucket.subAggs); err != nil {
				return wrap.Errorf(err, "failed to merge sub-aggregations for bucket %d", key)
			}
		}
	}

	return nil
}

// CollectParallel splits the documents among the given number of workers, each collecting into its
// own partial Collector, and merges the partial results into this collector.
func (collector *Collector) CollectParallel(documents []Document, workers int) error {
	if workers < 2 || len(documents) < workers {
		for _, document := range documents {
			collector.Collect(document)
		}
		return nil
	}

	partials := make([]*Collector, workers)
	var group errgroup.Group

	chunkSize := (len(documents) + workers - 1) / workers
	for i := 0; i < workers; i++ {
		i := i
		group.Go(func() error {
			partial := NewCollector(collector.rounder, collector.framework)
			start := i * chunkSize
			end := min(start+chunkSize, len(documents))
			for _, document := range documents[start:end] {
				partial.Collect(document)
			}
			partials[i] = partial
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, partial := range partials {
		if err := collector.Merge(partial); err != nil {
			return err
		}
	}
	return nil
}

// ParseTimestamp interprets a raw field value as a UTC millisecond instant. Numeric values are
// taken as epoch milliseconds; strings are parsed leniently.
func ParseTimestamp(value any) (int64, error) {
	switch value := value.(type) {
	case int64:
		return value, nil
	case int:
		return int64(value), nil
	case float64:
		return int64(value), nil
	case time.Time:
		return value.UnixMilli(), nil
	case *time.Time:
		if value == nil {
			return 0, InvalidDateValueError{Value: value}
		}
		return value.UnixMilli(), nil
	case string:
		parsed, err := dateparse.ParseIn(value, time.UTC)
		if err != nil {
			return 0, InvalidDateValueError{Value: value, Cause: err}
		}
		return parsed.UnixMilli(), nil
	default:
		return 0, InvalidDateValueError{Value: value}
	}
}
