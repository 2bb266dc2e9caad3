package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	Extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsum_extractions_total",
		Help: "Caption extractions by result",
	}, []string{"result"})

	ProcessorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsum_processor_runs_total",
		Help: "Pipeline processor runs by processor and result",
	}, []string{"processor", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsum_http_requests_total",
		Help: "Served HTTP requests by api and status",
	}, []string{"api", "status"})

	FailureWritesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capsum_failure_writes_failed_total",
		Help: "Videos that could not be marked as failed",
	})
)

func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
