package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Generation stages reported by ObserveGenerationFailure.
const (
	StageSQL    = "sql"
	StageAnswer = "answer"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopqa_questions_total",
			Help: "Total number of processed questions by outcome status.",
		},
		[]string{"status"},
	)
	questionLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopqa_question_latency_seconds",
			Help:    "End-to-end pipeline latency per question.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)
	generationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopqa_generation_failures_total",
			Help: "Total number of text-generation failures by pipeline stage.",
		},
		[]string{"stage"},
	)
	generationLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopqa_generation_latency_seconds",
			Help:    "Text-generation call latency by pipeline stage.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopqa_query_executions_total",
			Help: "Total number of generated SQL executions by result.",
		},
		[]string{"result"},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopqa_query_duration_ms",
			Help:    "Generated SQL execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopqa_query_rows_returned",
			Help:    "Rows returned by successful generated SQL executions.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 500, 1000},
		},
	)
	archiveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shopqa_archive_failures_total",
			Help: "Total number of outcomes that could not be archived.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		questionLatencySeconds,
		generationFailuresTotal,
		generationLatencySeconds,
		queryExecutionsTotal,
		queryDurationMs,
		queryRowsReturned,
		archiveFailuresTotal,
	)
}

func ObserveQuestion(status string, elapsed time.Duration) {
	questionsTotal.WithLabelValues(status).Inc()
	questionLatencySeconds.Observe(elapsed.Seconds())
}

func ObserveGeneration(stage string, elapsed time.Duration, err error) {
	generationLatencySeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		generationFailuresTotal.WithLabelValues(stage).Inc()
	}
}

// ObserveQuery records one gateway execution. Rows are only counted on success.
func ObserveQuery(elapsed time.Duration, rows int, failed bool) {
	queryDurationMs.Observe(float64(elapsed.Milliseconds()))
	if failed {
		queryExecutionsTotal.WithLabelValues("error").Inc()
		return
	}
	queryExecutionsTotal.WithLabelValues("ok").Inc()
	if rows < 0 {
		rows = 0
	}
	queryRowsReturned.Observe(float64(rows))
}

func IncrementArchiveFailure() {
	archiveFailuresTotal.Inc()
}
