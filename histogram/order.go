package histogram

import (
	"slices"

	"hermannm.dev/enumnames"
)

type SortOrder int8

const (
	SortOrderAscending SortOrder = iota + 1
	SortOrderDescending
)

var sortOrderMap = enumnames.NewMap(map[SortOrder]string{
	SortOrderAscending:  "ASCENDING",
	SortOrderDescending: "DESCENDING",
})

func (sortOrder SortOrder) IsValid() bool {
	return sortOrderMap.ContainsEnumValue(sortOrder)
}

func (sortOrder SortOrder) String() string {
	return sortOrderMap.GetNameOrFallback(sortOrder, "INVALID_SORT_ORDER")
}

func (sortOrder SortOrder) MarshalJSON() ([]byte, error) {
	return sortOrderMap.MarshalToNameJSON(sortOrder)
}

func (sortOrder *SortOrder) UnmarshalJSON(bytes []byte) error {
	return sortOrderMap.UnmarshalFromNameJSON(bytes, sortOrder)
}

type OrderTarget int8

const (
	OrderTargetKey OrderTarget = iota + 1
	OrderTargetCount
	OrderTargetAggregation
)

var orderTargetMap = enumnames.NewMap(map[OrderTarget]string{
	OrderTargetKey:         "KEY",
	OrderTargetCount:       "COUNT",
	OrderTargetAggregation: "AGGREGATION",
})

func (target OrderTarget) IsValid() bool {
	return orderTargetMap.ContainsEnumValue(target)
}

func (target OrderTarget) String() string {
	return orderTargetMap.GetNameOrFallback(target, "INVALID_ORDER_TARGET")
}

func (target OrderTarget) MarshalJSON() ([]byte, error) {
	return orderTargetMap.MarshalToNameJSON(target)
}

func (target *OrderTarget) UnmarshalJSON(bytes []byte) error {
	return orderTargetMap.UnmarshalFromNameJSON(bytes, target)
}

// BucketOrder is a single ordering criterion for the final bucket sequence. A list of them forms a
// compound order, applied as primary/secondary/... sort keys.
type BucketOrder struct {
	Target OrderTarget `json:"target"`
	// Path to a sub-aggregation value; only set when Target is AGGREGATION. Nested aggregations
	// are addressed with '>' ("outer>inner"), and a value of a multi-valued metric with a final
	// '.' segment ("stats.sum").
	Path      string    `json:"path,omitempty"`
	SortOrder SortOrder `json:"sortOrder"`
}

func OrderByKey(sortOrder SortOrder) BucketOrder {
	return BucketOrder{Target: OrderTargetKey, SortOrder: sortOrder}
}

func OrderByCount(sortOrder SortOrder) BucketOrder {
	return BucketOrder{Target: OrderTargetCount, SortOrder: sortOrder}
}

func OrderByAggregation(path string, sortOrder SortOrder) BucketOrder {
	return BucketOrder{Target: OrderTargetAggregation, Path: path, SortOrder: sortOrder}
}

// SortBuckets stable-sorts buckets by the given criteria in priority order. Ties left after every
// criterion (and the count/aggregation criteria themselves, which are inherently non-unique) are
// broken by ascending bucket key, so the resulting order is always total and deterministic.
//
// Fails with InvalidOrderPathError if an aggregation order path does not resolve to a single
// numeric value on every bucket.
func SortBuckets(buckets []Bucket, orders []BucketOrder) error {
	for _, order := range orders {
		if !order.Target.IsValid() {
			return InvalidOrderPathError{Path: order.Path, Reason: "invalid order target"}
		}
		if !order.SortOrder.IsValid() {
			return InvalidOrderPathError{Path: order.Path, Reason: "invalid sort order"}
		}
		if order.Target != OrderTargetAggregation {
			continue
		}

		for _, bucket := range buckets {
			if bucket.Aggregations == nil {
				return InvalidOrderPathError{
					Path:   order.Path,
					Reason: "buckets have no sub-aggregations",
				}
			}
			if _, resolved := bucket.Aggregations.ResolveScalar(order.Path); !resolved {
				return InvalidOrderPathError{
					Path:   order.Path,
					Reason: "path does not resolve to a single numeric value",
				}
			}
		}
	}

	slices.SortStableFunc(buckets, func(bucketA Bucket, bucketB Bucket) int {
		for _, order := range orders {
			if comparison := order.compare(bucketA, bucketB); comparison != 0 {
				return comparison
			}
		}
		return compareInt64(bucketA.Key, bucketB.Key)
	})
	return nil
}

func (order BucketOrder) compare(bucketA Bucket, bucketB Bucket) int {
	var comparison int
	switch order.Target {
	case OrderTargetKey:
		comparison = compareInt64(bucketA.Key, bucketB.Key)
	case OrderTargetCount:
		comparison = compareInt64(bucketA.DocCount, bucketB.DocCount)
	case OrderTargetAggregation:
		// Path resolution is validated before sorting.
		valueA, _ := bucketA.Aggregations.ResolveScalar(order.Path)
		valueB, _ := bucketB.Aggregations.ResolveScalar(order.Path)
		switch {
		case valueA < valueB:
			comparison = -1
		case valueA > valueB:
			comparison = 1
		}
	}

	if order.SortOrder == SortOrderDescending {
		comparison = -comparison
	}
	return comparison
}

func compareInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
