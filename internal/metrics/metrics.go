package metrics

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// RecordsTotal counts stored items by job and outcome
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_total",
			Help: "Total number of source items handled, by outcome",
		},
		[]string{"job", "outcome"},
	)

	// ItemsFetched counts items returned by the source
	ItemsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_items_fetched_total",
			Help: "Total number of items returned by the remote ledger source",
		},
		[]string{"job"},
	)

	// RunsTotal counts runs by job and final state
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total number of ingestion runs by final state",
		},
		[]string{"job", "state"},
	)

	// RunDuration tracks the wall time of a run
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Ingestion run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// ErrorsTotal counts errors by job and kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of errors",
		},
		[]string{"job", "kind"},
	)

	// CheckpointOffset tracks the stored offset of offset-style jobs
	CheckpointOffset = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_checkpoint_offset",
			Help: "Stored checkpoint offset by job",
		},
		[]string{"job"},
	)

	// CheckpointAdvances counts checkpoint saves that moved the position
	CheckpointAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_checkpoint_advances_total",
			Help: "Total number of checkpoint advances",
		},
		[]string{"job"},
	)

	// LastSuccess is the unix time of the last run that reached done
	LastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run by job",
		},
		[]string{"job"},
	)
)

// Push sends every registered metric to a Pushgateway under the given job
// name, grouped by host.
func Push(ctx context.Context, url, job string) error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	err = push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", host).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
