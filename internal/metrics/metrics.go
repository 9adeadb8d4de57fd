// Package metrics exposes the importer's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts finished import batches by source format and
	// terminal status.
	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoimport_batches_total",
		Help: "Import batches processed, by format and status.",
	}, []string{"format", "status"})

	// RecordsImported counts successfully persisted records.
	RecordsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoimport_records_imported_total",
		Help: "Records persisted to the object store.",
	}, []string{"object_type"})

	// RecordsFailed counts records rejected at decode, mapping or
	// insert time.
	RecordsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoimport_records_failed_total",
		Help: "Records rejected during import.",
	}, []string{"object_type"})
)
