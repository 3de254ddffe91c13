package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics содержит метрики операций корзины.
type CartMetrics struct {
	// Счётчики мутаций
	mutationsTotal   *prometheus.CounterVec
	mutationFailures *prometheus.CounterVec

	// Счётчики слияний
	mergesTotal      prometheus.Counter
	mergeNoopTotal   prometheus.Counter
	mergedLinesTotal prometheus.Counter

	// Гистограммы времени выполнения
	mutationDuration   *prometheus.HistogramVec
	mergeDuration      prometheus.Histogram
	projectionDuration prometheus.Histogram
}

// NewCartMetrics создаёт новый экземпляр метрик корзины.
func NewCartMetrics() *CartMetrics {
	return newCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		mutationsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Total number of successful cart mutations",
		}, []string{"op"}),
		mutationFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_mutation_failures_total",
			Help: "Total number of rejected or failed cart mutations",
		}, []string{"op", "reason"}),
		mergesTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "cart_merges_total",
			Help: "Total number of guest-to-user cart merges performed",
		}),
		mergeNoopTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "cart_merge_noop_total",
			Help: "Total number of merge invocations that found an empty guest cart",
		}),
		mergedLinesTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "cart_merged_lines_total",
			Help: "Total number of guest cart lines folded into user carts",
		}),
		mutationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "cart_mutation_duration_seconds",
			Help:    "Duration of cart mutations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"op"}),
		mergeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "cart_merge_duration_seconds",
			Help:    "Duration of cart merge operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		projectionDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "cart_projection_duration_seconds",
			Help:    "Duration of cart projection reads in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}
}

// HTTPMetrics содержит метрики HTTP-слоя.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics создаёт метрики HTTP API.
func NewHTTPMetrics() *HTTPMetrics {
	return newHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newHTTPMetricsWithRegisterer(registerer prometheus.Registerer) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &HTTPMetrics{
		requestsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_http_requests_total",
			Help: "Total number of HTTP requests by handler and status code",
		}, []string{"handler", "code", "method"}),
		requestDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "cart_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
	}
}

// RequestsTotal возвращает counter-вектор для promhttp-инструментации.
func (m *HTTPMetrics) RequestsTotal() *prometheus.CounterVec { return m.requestsTotal }

// RequestDuration возвращает histogram-вектор для promhttp-инструментации.
func (m *HTTPMetrics) RequestDuration() *prometheus.HistogramVec { return m.requestDuration }

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordMutation увеличивает счётчик успешных мутаций.
func (m *CartMetrics) RecordMutation(op string) {
	m.mutationsTotal.WithLabelValues(op).Inc()
}

// RecordMutationFailure увеличивает счётчик отклонённых мутаций.
func (m *CartMetrics) RecordMutationFailure(op, reason string) {
	m.mutationFailures.WithLabelValues(op, reason).Inc()
}

// RecordMutationDuration записывает время выполнения мутации.
func (m *CartMetrics) RecordMutationDuration(op string, duration time.Duration) {
	m.mutationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordMerge фиксирует состоявшееся слияние и число перенесённых позиций.
func (m *CartMetrics) RecordMerge(lines int) {
	m.mergesTotal.Inc()
	m.mergedLinesTotal.Add(float64(lines))
}

// RecordMergeNoop фиксирует merge, не нашедший гостевой корзины.
func (m *CartMetrics) RecordMergeNoop() {
	m.mergeNoopTotal.Inc()
}

// RecordMergeDuration записывает время выполнения merge.
func (m *CartMetrics) RecordMergeDuration(duration time.Duration) {
	m.mergeDuration.Observe(duration.Seconds())
}

// RecordProjectionDuration записывает время вычисления проекции.
func (m *CartMetrics) RecordProjectionDuration(duration time.Duration) {
	m.projectionDuration.Observe(duration.Seconds())
}
