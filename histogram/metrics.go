package histogram

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"
)

type MetricKind int8

const (
	MetricSum MetricKind = iota + 1
	MetricAverage
	MetricMin
	MetricMax
	MetricValueCount
	MetricStats
)

var metricKindMap = enumnames.NewMap(map[MetricKind]string{
	MetricSum:        "SUM",
	MetricAverage:    "AVERAGE",
	MetricMin:        "MIN",
	MetricMax:        "MAX",
	MetricValueCount: "VALUE_COUNT",
	MetricStats:      "STATS",
})

func (kind MetricKind) IsValid() bool {
	return metricKindMap.ContainsEnumValue(kind)
}

func (kind MetricKind) String() string {
	return metricKindMap.GetNameOrFallback(kind, "INVALID_METRIC")
}

func (kind MetricKind) MarshalJSON() ([]byte, error) {
	return metricKindMap.MarshalToNameJSON(kind)
}

func (kind *MetricKind) UnmarshalJSON(bytes []byte) error {
	return metricKindMap.UnmarshalFromNameJSON(bytes, kind)
}

// MetricDefinition names a per-bucket metric computed over a numeric document field.
type MetricDefinition struct {
	Name  string     `json:"name"`
	Kind  MetricKind `json:"kind"`
	Field string     `json:"field"`
}

// MetricsFramework is a SubAggregationFramework computing simple numeric metrics per bucket. It
// implements the sub-aggregation collaborator for the engine's own API and tests; the engine
// itself only sees the SubAggregation interfaces.
type MetricsFramework struct {
	definitions []MetricDefinition
}

func NewMetricsFramework(definitions ...MetricDefinition) (*MetricsFramework, error) {
	seenNames := make(map[string]bool, len(definitions))
	for _, definition := range definitions {
		if definition.Name == "" || definition.Field == "" {
			return nil, fmt.Errorf(
				"metric definitions require both a name and a field (got name '%s', field '%s')",
				definition.Name,
				definition.Field,
			)
		}
		if !definition.Kind.IsValid() {
			return nil, fmt.Errorf("invalid metric kind for metric '%s'", definition.Name)
		}
		if seenNames[definition.Name] {
			return nil, fmt.Errorf("duplicate metric name '%s'", definition.Name)
		}
		seenNames[definition.Name] = true
	}

	return &MetricsFramework{definitions: definitions}, nil
}

func (framework *MetricsFramework) NewBucketState() SubAggregationState {
	return &metricsState{
		framework: framework,
		values:    make(map[string][]float64, len(framework.definitions)),
	}
}

type metricsState struct {
	framework *MetricsFramework
	values    map[string][]float64
}

func (state *metricsState) Collect(document Document) {
	for _, definition := range state.framework.definitions {
		if value, present := document.Fields[definition.Field]; present {
			state.values[definition.Name] = append(state.values[definition.Name], value)
		}
	}
}

func (state *metricsState) Merge(other SubAggregationState) error {
	otherState, isSameType := other.(*metricsState)
	if !isSameType {
		return fmt.Errorf("cannot merge sub-aggregation state of type %T into metrics", other)
	}

	// The final metrics are computed over the value multiset, so append order does not matter and
	// merging stays commutative.
	for name, values := range otherState.values {
		state.values[name] = append(state.values[name], values...)
	}
	return nil
}

func (state *metricsState) Finalize() SubAggregations {
	results := make(MetricResults, len(state.framework.definitions))
	for _, definition := range state.framework.definitions {
		results[definition.Name] = computeMetric(definition.Kind, state.values[definition.Name])
	}
	return results
}

// MetricResult is a finalized metric value: a plain scalar, or a multi-valued stats result
// addressed by its individual value names.
type MetricResult struct {
	Value float64
	Stats *StatsValues
}

type StatsValues struct {
	Count float64 `json:"count"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func (result MetricResult) MarshalJSON() ([]byte, error) {
	if result.Stats != nil {
		return json.Marshal(result.Stats)
	}
	return json.Marshal(result.Value)
}

// MetricResults maps metric name to finalized result for one bucket.
type MetricResults map[string]MetricResult

// ResolveScalar resolves an order path against these results. Multi-valued stats metrics are
// addressed with a '.' segment ("stats.sum"); '>' paths into nested bucket aggregations never
// resolve here, since metrics are leaf values.
func (results MetricResults) ResolveScalar(path string) (float64, bool) {
	if strings.Contains(path, ">") {
		return 0, false
	}

	name := path
	var statsValue string
	if dotIndex := strings.LastIndex(path, "."); dotIndex != -1 {
		name, statsValue = path[:dotIndex], path[dotIndex+1:]
	}

	result, exists := results[name]
	if !exists {
		return 0, false
	}

	if result.Stats == nil {
		if statsValue != "" {
			return 0, false
		}
		return result.Value, true
	}

	switch statsValue {
	case "count":
		return result.Stats.Count, true
	case "sum":
		return result.Stats.Sum, true
	case "avg":
		return result.Stats.Avg, true
	case "min":
		return result.Stats.Min, true
	case "max":
		return result.Stats.Max, true
	default:
		// A bare stats name is not a single numeric value.
		return 0, false
	}
}

func computeMetric(kind MetricKind, values []float64) MetricResult {
	switch kind {
	case MetricValueCount:
		return MetricResult{Value: float64(len(values))}
	case MetricStats:
		return MetricResult{Stats: computeStats(values)}
	default:
		if len(values) == 0 {
			// Empty buckets order as zero, keeping comparisons deterministic.
			return MetricResult{Value: 0}
		}

		var value float64
		var err error
		switch kind {
		case MetricSum:
			value, err = stats.Sum(values)
		case MetricAverage:
			value, err = stats.Mean(values)
		case MetricMin:
			value, err = stats.Min(values)
		case MetricMax:
			value, err = stats.Max(values)
		}
		if err != nil {
			// Only reachable on empty input, which is checked above.
			panic(wrap.Errorf(err, "failed to compute %v metric", kind))
		}
		return MetricResult{Value: value}
	}
}

func computeStats(values []float64) *StatsValues {
	if len(values) == 0 {
		return &StatsValues{}
	}

	sum, _ := stats.Sum(values)
	mean, _ := stats.Mean(values)
	minValue, _ := stats.Min(values)
	maxValue, _ := stats.Max(values)
	return &StatsValues{
		Count: float64(len(values)),
		Sum:   sum,
		Avg:   mean,
		Min:   minValue,
		Max:   maxValue,
	}
}
