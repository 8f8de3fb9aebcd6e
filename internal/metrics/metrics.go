// Package metrics собирает метрики Prometheus по обработанным файлам.
// CLI не поднимает HTTP сервер: метрики выгружаются в текстовый файл
// для node_exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/artemshloyda/imageconverter/internal/converter"
)

const namespace = "imageconverter"

// Metrics - набор метрик процесса.
type Metrics struct {
	registry *prometheus.Registry

	files     *prometheus.CounterVec
	bytesIn   prometheus.Counter
	bytesOut  prometheus.Counter
	duration  *prometheus.HistogramVec
	warnings  prometheus.Counter
	cacheHits prometheus.Counter
	batches   *prometheus.CounterVec
}

// New создаёт метрики в собственном реестре.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Обработанные файлы по статусу и категории ошибки.",
		}, []string{"status", "kind"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Размер успешно сконвертированных исходников.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Размер записанных файлов.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Время обработки файла.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"format"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Предупреждения (например, нераспознанные ICC профили).",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Результаты, взятые из кэша.",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Завершённые пачки по статусу.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.files, m.bytesIn, m.bytesOut, m.duration, m.warnings, m.cacheHits, m.batches)
	return m
}

// Observe учитывает результат одного файла.
func (m *Metrics) Observe(r *converter.Result) {
	kind := ""
	if r.Status != converter.StatusSucceeded {
		kind = r.Kind().String()
	}
	m.files.WithLabelValues(r.Status.String(), kind).Inc()
	m.warnings.Add(float64(len(r.Warnings)))

	if r.Status != converter.StatusSucceeded {
		return
	}
	m.bytesIn.Add(float64(r.Source.Size))
	m.bytesOut.Add(float64(r.BytesWritten))
	m.duration.WithLabelValues(r.Source.Format.String()).Observe(r.Duration.Seconds())
	if r.Cached {
		m.cacheHits.Inc()
	}
}

// BatchFinished учитывает завершённую пачку.
func (m *Metrics) BatchFinished(status string) {
	m.batches.WithLabelValues(status).Inc()
}

// Registry возвращает реестр метрик.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile атомарно записывает метрики в файл в текстовом формате.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("не удалось записать метрики: %w", err)
	}
	return nil
}
