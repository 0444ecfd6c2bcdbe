package histogram

import "slices"

// ExtendedBounds widens the range of buckets in the final result beyond the observed data, so that
// the output covers at least [RoundDown(Min), RoundDown(Max)] contiguously. Both are UTC
// millisecond instants (date-math expressions are resolved before they get here).
type ExtendedBounds struct {
	Min int64
	Max int64
}

// Bucket is one finalized time bucket. Buckets are immutable once the aggregation completes;
// ordering only rearranges them.
type Bucket struct {
	// Bucket start, in UTC milliseconds.
	Key int64 `json:"key"`
	// Key formatted with the request's date format pattern, in the request's time zone.
	KeyAsString  string          `json:"keyAsString"`
	DocCount     int64           `json:"docCount"`
	Aggregations SubAggregations `json:"aggregations,omitempty"`
}

// buildBuckets materializes the collector's bucket map into a key-ordered sequence, synthesizing
// zero-count buckets according to minDocCount and extended bounds:
//   - minDocCount 0: every key between the earliest and latest bucket is present, with bounds
//     widening that range.
//   - minDocCount > 0: only buckets meeting the threshold appear, except that bounds still force
//     their covered range to be contiguous.
func (collector *Collector) buildBuckets(
	minDocCount int64,
	bounds *ExtendedBounds,
) ([]Bucket, error) {
	observedKeys := make([]int64, 0, len(collector.buckets))
	for key := range collector.buckets {
		observedKeys = append(observedKeys, key)
	}
	slices.Sort(observedKeys)

	var boundsMin, boundsMax int64
	if bounds != nil {
		boundsMin = collector.rounder.RoundDown(bounds.Min)
		boundsMax = collector.rounder.RoundDown(bounds.Max)
		if boundsMin > boundsMax {
			return nil, InvalidBoundsError{Min: boundsMin, Max: boundsMax}
		}
	}

	var buckets []Bucket

	if minDocCount == 0 {
		start, end, empty := collector.fillRange(observedKeys, bounds, boundsMin, boundsMax)
		if empty {
			return []Bucket{}, nil
		}
		for key := start; key <= end; key = collector.rounder.NextKey(key) {
			buckets = append(buckets, collector.finalizeBucket(key))
		}
		return buckets, nil
	}

	if bounds == nil {
		for _, key := range observedKeys {
			if bucket := collector.finalizeBucket(key); bucket.DocCount >= minDocCount {
				buckets = append(buckets, bucket)
			}
		}
		return buckets, nil
	}

	// Bounds force their range to be present even below the doc count threshold; observed buckets
	// outside the bounds still have to meet it.
	for _, key := range observedKeys {
		if key >= boundsMin {
			break
		}
		if bucket := collector.finalizeBucket(key); bucket.DocCount >= minDocCount {
			buckets = append(buckets, bucket)
		}
	}
	for key := boundsMin; key <= boundsMax; key = collector.rounder.NextKey(key) {
		buckets = append(buckets, collector.finalizeBucket(key))
	}
	for _, key := range observedKeys {
		if key <= boundsMax {
			continue
		}
		if bucket := collector.finalizeBucket(key); bucket.DocCount >= minDocCount {
			buckets = append(buckets, bucket)
		}
	}
	return buckets, nil
}

func (collector *Collector) fillRange(
	observedKeys []int64,
	bounds *ExtendedBounds,
	boundsMin int64,
	boundsMax int64,
) (start int64, end int64, empty bool) {
	if len(observedKeys) == 0 {
		if bounds == nil {
			return 0, 0, true
		}
		return boundsMin, boundsMax, false
	}

	start = observedKeys[0]
	end = observedKeys[len(observedKeys)-1]
	if bounds != nil {
		if boundsMin < start {
			start = boundsMin
		}
		if boundsMax > end {
			end = boundsMax
		}
	}
	return start, end, false
}

func (collector *Collector) finalizeBucket(key int64) Bucket {
	bucket := Bucket{Key: key}

	if state, observed := collector.buckets[key]; observed {
		bucket.DocCount = state.docCount
		if state.subAggs != nil {
			bucket.Aggregations = state.subAggs.Finalize()
		}
	} else if collector.framework != nil {
		// Synthesized empty buckets carry the framework's zero state, so order paths still
		// resolve against them.
		bucket.Aggregations = collector.framework.NewBucketState().Finalize()
	}

	return bucket
}
