package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coursebot"

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ingestions       *prometheus.CounterVec
	chunksPersisted  prometheus.Counter
	imagesExtracted  prometheus.Counter
	queries          *prometheus.CounterVec
	queryDuration    prometheus.Histogram
	answerConfidence prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Material ingestions by result.",
		}, []string{"result"}),
		chunksPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_persisted_total",
			Help:      "Chunks embedded and written to storage.",
		}),
		imagesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_extracted_total",
			Help:      "Images saved from ingested PDFs.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answered questions by answer mode.",
		}, []string{"mode"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end question answering latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		answerConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_confidence",
			Help:      "Confidence attached to returned answers.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ingestions, m.chunksPersisted, m.imagesExtracted,
			m.queries, m.queryDuration, m.answerConfidence)
	}
	return m
}

func (m *Metrics) IngestionDone(err error, chunks, images int) {
	if m == nil {
		return
	}
	if err != nil {
		m.ingestions.WithLabelValues("error").Inc()
		return
	}
	m.ingestions.WithLabelValues("ok").Inc()
	m.chunksPersisted.Add(float64(chunks))
	m.imagesExtracted.Add(float64(images))
}

func (m *Metrics) QueryDone(mode string, seconds, confidence float64) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(mode).Inc()
	m.queryDuration.Observe(seconds)
	m.answerConfidence.Observe(confidence)
}
