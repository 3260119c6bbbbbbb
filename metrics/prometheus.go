package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "partflow"

// Exporter exposes a Collector's counters as Prometheus metrics.
// Values are read from a Snapshot on every scrape.
type Exporter struct {
	c *Collector

	counters         []counterDesc
	storageWrites    *prometheus.Desc
	adapterPublishes *prometheus.Desc
	failedByKind     *prometheus.Desc
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

// NewExporter creates an Exporter for c. Dimension labels of the collector
// become constant labels.
func NewExporter(c *Collector) *Exporter {
	s := c.Snapshot()
	labels := prometheus.Labels{
		"storage_backend": s.StorageBackend,
		"mode":            s.Mode,
	}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}

	return &Exporter{
		c: c,
		counters: []counterDesc{
			{desc("requests_started_total", "Requests handed to a parser."),
				func(s Snapshot) int64 { return s.RequestsStarted }},
			{desc("requests_completed_total", "Requests that parsed successfully."),
				func(s Snapshot) int64 { return s.RequestsCompleted }},
			{desc("requests_failed_total", "Requests that ended with an error."),
				func(s Snapshot) int64 { return s.RequestsFailed }},
			{desc("requests_aborted_total", "Requests aborted by the transport."),
				func(s Snapshot) int64 { return s.RequestsAborted }},
			{desc("body_bytes_received_total", "Raw body bytes received."),
				func(s Snapshot) int64 { return s.BytesReceived }},
			{desc("fields_total", "Completed field parts."),
				func(s Snapshot) int64 { return s.FieldsParsed }},
			{desc("field_bytes_total", "Decoded bytes of field parts."),
				func(s Snapshot) int64 { return s.FieldBytes }},
			{desc("files_total", "Completed file parts."),
				func(s Snapshot) int64 { return s.FilesParsed }},
			{desc("file_bytes_total", "Decoded bytes of file parts."),
				func(s Snapshot) int64 { return s.FileBytes }},
			{desc("base64_parts_total", "Parts using base64 transfer encoding."),
				func(s Snapshot) int64 { return s.Base64Parts }},
		},
		storageWrites:    desc("storage_writes_total", "Storage writes by status.", "status"),
		adapterPublishes: desc("adapter_publishes_total", "Completion event publishes by status.", "status"),
		failedByKind:     desc("request_errors_total", "Request errors by kind.", "kind"),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	ch <- e.storageWrites
	ch <- e.adapterPublishes
	ch <- e.failedByKind
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.c.Snapshot()

	for _, c := range e.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(s)))
	}

	ch <- prometheus.MustNewConstMetric(e.storageWrites, prometheus.CounterValue, float64(s.StorageWriteSuccess), "success")
	ch <- prometheus.MustNewConstMetric(e.storageWrites, prometheus.CounterValue, float64(s.StorageWriteFailure), "failure")
	ch <- prometheus.MustNewConstMetric(e.adapterPublishes, prometheus.CounterValue, float64(s.AdapterPublishSuccess), "success")
	ch <- prometheus.MustNewConstMetric(e.adapterPublishes, prometheus.CounterValue, float64(s.AdapterPublishFailure), "failure")

	kinds := make([]string, 0, len(s.FailedByKind))
	for k := range s.FailedByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ch <- prometheus.MustNewConstMetric(e.failedByKind, prometheus.CounterValue, float64(s.FailedByKind[k]), k)
	}
}
