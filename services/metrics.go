package services

import "github.com/prometheus/client_golang/prometheus"

var (
	cascadeDeletionsCounter  *prometheus.CounterVec
	remoteCallsCounter       *prometheus.CounterVec
	remoteOrphanFormsCounter prometheus.Counter
	searchJobsCounter        *prometheus.CounterVec
)

func init() {
	cascadeDeletionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slr_cascade_deletions_total",
			Help: "Committed cascade deletions per aggregate.",
		},
		[]string{"aggregate"},
	)
	remoteCallsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slr_remote_calls_total",
			Help: "Calls to the neighbouring service by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	remoteOrphanFormsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slr_remote_orphan_forms_total",
			Help: "Forms whose remote instances were deleted although the local transaction rolled back.",
		},
	)
	searchJobsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slr_search_jobs_total",
			Help: "Processed search outbox jobs by resulting status.",
		},
		[]string{"status"},
	)
	prometheus.MustRegister(cascadeDeletionsCounter, remoteCallsCounter, remoteOrphanFormsCounter, searchJobsCounter)
}
