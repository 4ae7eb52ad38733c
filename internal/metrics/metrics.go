// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	sectionSaves      *prometheus.CounterVec
	saveDuration      prometheus.Histogram
	attachmentUploads *prometheus.CounterVec
	elementUpserts    *prometheus.CounterVec
	crmPushes         *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sectionSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renocheck_section_saves_total",
			Help: "Section saves by result (ok, partial, skipped, failed).",
		}, []string{"result"}),
		saveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "renocheck_section_save_duration_seconds",
			Help:    "Duration of section saves including uploads and refetch.",
			Buckets: prometheus.DefBuckets,
		}),
		attachmentUploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renocheck_attachment_uploads_total",
			Help: "Attachments processed on save by result (uploaded, inline, failed).",
		}, []string{"result"}),
		elementUpserts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renocheck_element_upserts_total",
			Help: "Element row upserts by result (ok, failed).",
		}, []string{"result"}),
		crmPushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renocheck_crm_pushes_total",
			Help: "CRM finalization pushes by result (synced, not_found, failed, disabled).",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "renocheck_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "renocheck_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) SectionSave(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.sectionSaves.WithLabelValues(result).Inc()
	if result != "skipped" {
		m.saveDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) AttachmentUpload(result string) {
	if m == nil {
		return
	}
	m.attachmentUploads.WithLabelValues(result).Inc()
}

func (m *Metrics) ElementUpsert(result string) {
	if m == nil {
		return
	}
	m.elementUpserts.WithLabelValues(result).Inc()
}

func (m *Metrics) CRMPush(result string) {
	if m == nil {
		return
	}
	m.crmPushes.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
