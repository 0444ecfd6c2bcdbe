package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"hermannm.dev/datehistogram/datemath"
	"hermannm.dev/datehistogram/histogram"
	"hermannm.dev/datehistogram/source"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// HistogramRequest is the body of a POST /histogram request. The target table/index is given by
// the 'table' query parameter.
type HistogramRequest struct {
	// Document field providing bucket timestamps. Required.
	DateField string `json:"dateField"`
	// Per-bucket metrics to compute over numeric document fields.
	Metrics []histogram.MetricDefinition `json:"metrics,omitempty"`

	Interval       string                  `json:"interval"`
	TimeZone       string                  `json:"timeZone,omitempty"`
	Offset         string                  `json:"offset,omitempty"`
	Format         string                  `json:"format,omitempty"`
	MinDocCount    int64                   `json:"minDocCount"`
	ExtendedBounds *ExtendedBoundsValues   `json:"extendedBounds,omitempty"`
	Orders         []histogram.BucketOrder `json:"order,omitempty"`
}

// ExtendedBoundsValues are bound endpoints as either epoch milliseconds, date literals or
// date-math expressions ("now-1d/d").
type ExtendedBoundsValues struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

type HistogramResponse struct {
	Buckets []histogram.Bucket `json:"buckets"`
}

func (api HistogramAPI) RunHistogram(res http.ResponseWriter, req *http.Request) {
	requestID := uuid.NewString()

	table := req.URL.Query().Get("table")
	if table == "" {
		sendClientError(res, nil, "missing 'table' query parameter in request")
		return
	}

	var request HistogramRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		sendClientError(res, err, "failed to parse histogram request from request body")
		return
	}
	if request.DateField == "" {
		sendClientError(res, nil, "missing 'dateField' in histogram request")
		return
	}

	aggregation, err := buildHistogram(request)
	if err != nil {
		sendClientError(res, err, "invalid histogram request")
		return
	}

	documents, err := api.source.FetchDocuments(req.Context(), source.Query{
		Table:         table,
		DateField:     request.DateField,
		NumericFields: numericFields(request.Metrics),
	})
	if err != nil {
		var dateValueErr histogram.InvalidDateValueError
		if errors.As(err, &dateValueErr) {
			sendClientError(res, err, "failed to read date values from documents")
		} else {
			sendServerError(res, err, "failed to fetch documents")
		}
		return
	}

	buckets, err := aggregation.RunParallel(documents, runtime.NumCPU())
	if err != nil {
		if isRequestError(err) {
			sendClientError(res, err, "histogram aggregation rejected")
		} else {
			sendServerError(res, err, "histogram aggregation failed")
		}
		return
	}

	log.Debug(
		"histogram aggregation completed",
		slog.String("requestId", requestID),
		slog.String("table", table),
		slog.Int("documents", len(documents)),
		slog.Int("buckets", len(buckets)),
	)
	sendJSON(res, HistogramResponse{Buckets: buckets})
}

func buildHistogram(request HistogramRequest) (*histogram.Histogram, error) {
	var framework histogram.SubAggregationFramework
	if len(request.Metrics) > 0 {
		metricsFramework, err := histogram.NewMetricsFramework(request.Metrics...)
		if err != nil {
			return nil, wrap.Error(err, "invalid metric definitions")
		}
		framework = metricsFramework
	}

	options := histogram.Options{
		Interval:    request.Interval,
		TimeZone:    request.TimeZone,
		Offset:      request.Offset,
		Format:      request.Format,
		MinDocCount: request.MinDocCount,
		Orders:      request.Orders,
	}

	if request.ExtendedBounds != nil {
		bounds, err := resolveBounds(*request.ExtendedBounds, request.TimeZone)
		if err != nil {
			return nil, err
		}
		options.ExtendedBounds = bounds
	}

	return histogram.New(options, framework)
}

// resolveBounds evaluates bound endpoints through the date-math collaborator, in the request's
// time zone.
func resolveBounds(
	bounds ExtendedBoundsValues,
	timeZone string,
) (*histogram.ExtendedBounds, error) {
	location, err := histogram.LoadLocation(timeZone)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	min, err := datemath.Resolve(bounds.Min, now, location)
	if err != nil {
		return nil, wrap.Error(err, "invalid extended bounds min")
	}
	max, err := datemath.Resolve(bounds.Max, now, location)
	if err != nil {
		return nil, wrap.Error(err, "invalid extended bounds max")
	}

	return &histogram.ExtendedBounds{Min: min, Max: max}, nil
}

func numericFields(metrics []histogram.MetricDefinition) []string {
	var fields []string
	for _, metric := range metrics {
		if !contains(fields, metric.Field) {
			fields = append(fields, metric.Field)
		}
	}
	return fields
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

// isRequestError reports whether the error was caused by the request configuration rather than by
// the server.
func isRequestError(err error) bool {
	var boundsErr histogram.InvalidBoundsError
	var orderPathErr histogram.InvalidOrderPathError
	var dateValueErr histogram.InvalidDateValueError
	return errors.As(err, &boundsErr) || errors.As(err, &orderPathErr) ||
		errors.As(err, &dateValueErr)
}
