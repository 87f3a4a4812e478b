package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksearch_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "path", "status"})

	HttpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stocksearch_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	ActionResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksearch_action_responses_total",
		Help: "Search action responses by status code",
	}, []string{"code"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksearch_upstream_requests_total",
		Help: "Requests issued to the stock search API by status code",
	}, []string{"code"})

	TokenValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksearch_token_validations_total",
		Help: "Bearer token validations by validator and outcome",
	}, []string{"validator", "result"})
)
