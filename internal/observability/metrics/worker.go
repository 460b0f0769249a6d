package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics tracks photo task throughput per task kind.
type WorkerMetrics struct {
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	tasksInFlight prometheus.Gauge
	queueDepth    *prometheus.GaugeVec

	service string
}

// NewWorkerMetrics registers worker collectors on the inference
// metrics registry so one /metrics endpoint serves both.
func NewWorkerMetrics(service string, inf *InferenceMetrics) *WorkerMetrics {
	tasksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodflow",
			Subsystem: "worker",
			Name:      "photo_tasks_total",
			Help:      "Processed photo tasks by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodflow",
			Subsystem: "worker",
			Name:      "photo_task_duration_seconds",
			Help:      "Photo task duration in seconds by kind.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "kind"},
	)
	tasksInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "foodflow",
			Subsystem: "worker",
			Name:      "photo_tasks_in_flight",
			Help:      "Photo tasks currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueDepth := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "foodflow",
			Subsystem: "worker",
			Name:      "user_queue_depth",
			Help:      "Pending items across per-user queues.",
		},
		[]string{"service"},
	)

	inf.registry.MustRegister(tasksTotal, taskDuration, tasksInFlight, queueDepth)

	return &WorkerMetrics{
		tasksTotal:    tasksTotal,
		taskDuration:  taskDuration,
		tasksInFlight: tasksInFlight,
		queueDepth:    queueDepth,
		service:       service,
	}
}

func (m *WorkerMetrics) StartTask() {
	m.tasksInFlight.Inc()
}

func (m *WorkerMetrics) FinishTask(kind string, duration time.Duration, err error) {
	m.tasksInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.tasksTotal.WithLabelValues(m.service, kind, status).Inc()
	m.taskDuration.WithLabelValues(m.service, kind).Observe(duration.Seconds())
}

func (m *WorkerMetrics) SetQueueDepth(depth int) {
	m.queueDepth.WithLabelValues(m.service).Set(float64(depth))
}
