// Package metrics registers the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opreport_submissions_total",
		Help: "Report submissions accepted for processing.",
	})

	OCRFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opreport_ocr_failures_total",
		Help: "Pages whose OCR call failed and contributed empty text.",
	})

	IncompleteRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opreport_incomplete_records_total",
		Help: "Submissions persisted with one or more mandatory fields missing.",
	})

	ProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "opreport_processing_duration_seconds",
		Help:    "End-to-end duration of one submission, upload to persisted record.",
		Buckets: prometheus.DefBuckets,
	})
)
