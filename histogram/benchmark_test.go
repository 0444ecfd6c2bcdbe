package histogram_test

import (
	"runtime"
	"testing"
	"time"

	"hermannm.dev/datehistogram/histogram"
)

const benchmarkDocumentCount = 100_000

func benchmarkHistogram(b *testing.B) *histogram.Histogram {
	framework, err := histogram.NewMetricsFramework(
		histogram.MetricDefinition{Name: "sum", Kind: histogram.MetricSum, Field: "value"},
		histogram.MetricDefinition{Name: "stats", Kind: histogram.MetricStats, Field: "value"},
	)
	if err != nil {
		b.Fatal(err)
	}

	aggregation, err := histogram.New(histogram.Options{
		Interval: "day",
		TimeZone: "Europe/Oslo",
		Orders: []histogram.BucketOrder{
			histogram.OrderByCount(histogram.SortOrderDescending),
		},
	}, framework)
	if err != nil {
		b.Fatal(err)
	}
	return aggregation
}

func benchmarkDocuments() []histogram.Document {
	start := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	documents := make([]histogram.Document, benchmarkDocumentCount)
	for i := range documents {
		documents[i] = histogram.Document{
			Timestamps: []int64{start + int64(i)*5*60*1000},
			Fields:     map[string]float64{"value": float64(i % 97)},
		}
	}
	return documents
}

func BenchmarkRun(b *testing.B) {
	aggregation := benchmarkHistogram(b)
	documents := benchmarkDocuments()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := aggregation.Run(documents); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRunParallel(b *testing.B) {
	aggregation := benchmarkHistogram(b)
	documents := benchmarkDocuments()
	workers := runtime.NumCPU()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := aggregation.RunParallel(documents, workers); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConcurrentRuns(b *testing.B) {
	const concurrentRuns = 64

	aggregation := benchmarkHistogram(b)
	documents := benchmarkDocuments()

	// Divides by GOMAXPROCS, since SetParallelism multiplies its argument by GOMAXPROCS, and we
	// want exactly concurrentRuns number of concurrent aggregations
	b.SetParallelism(concurrentRuns / runtime.GOMAXPROCS(0))
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := aggregation.Run(documents); err != nil {
				b.Fatal(err)
			}
		}
	})
}
