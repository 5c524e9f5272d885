package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	workflowOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_workflow_outcomes_total",
			Help: "Workflow invocations by result (success or error kind)",
		},
		[]string{"workflow", "result"},
	)

	workflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_workflow_duration_seconds",
			Help:    "Duration of workflow units of work",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_tickets_issued_total",
			Help: "Tickets issued by committed primary sales",
		},
	)

	ledgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_ledger_writes_total",
			Help: "Committed ledger appends and status changes",
		},
		[]string{"kind", "status"},
	)

	publishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_publish_failures_total",
			Help: "Domain events that could not be handed to the broker",
		},
		[]string{"queue"},
	)
)

// ObserveWorkflow records one workflow invocation.  result is "success" or
// the error kind of the failure.
func ObserveWorkflow(workflow, result string, took time.Duration) {
	workflowOutcomes.WithLabelValues(workflow, result).Inc()
	workflowDuration.WithLabelValues(workflow).Observe(took.Seconds())
}

func TicketsIssued(n int) { ticketsIssued.Add(float64(n)) }

func LedgerWrite(kind, status string) { ledgerWrites.WithLabelValues(kind, status).Inc() }

func PublishFailed(queue string) { publishFailures.WithLabelValues(queue).Inc() }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
