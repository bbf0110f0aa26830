// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Connections    prometheus.Gauge
	Rooms          *prometheus.GaugeVec
	Commands       *prometheus.CounterVec
	CommandLatency prometheus.Histogram
	TimerFires     *prometheus.CounterVec
	GamesFinished  *prometheus.CounterVec
	DroppedPackets prometheus.Counter
	RateLimited    prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open client connections",
		}),
		Rooms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of live rooms by variant",
		}, []string{"variant"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by command and result code",
		}, []string{"command", "result"}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Command processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		TimerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_fires_total",
			Help:      "Room timers fired, by variant and purpose",
		}, []string{"variant", "purpose"}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games that reached game-over, by variant and reason",
		}, []string{"variant", "reason"}),
		DroppedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_packets_total",
			Help:      "Outbound packets refused by a full or closed connection",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Inbound commands rejected by the rate limiter",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Connections,
		m.Rooms,
		m.Commands,
		m.CommandLatency,
		m.TimerFires,
		m.GamesFinished,
		m.DroppedPackets,
		m.RateLimited,
	}
}

// Monitor owns a registry so several servers can live in one process.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	m.registry.MustRegister(m.metrics.collectors()...)
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the server started",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	}))
	return m
}

func (m *Monitor) Metrics() *Metrics { return m.metrics }

func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Monitor) IncConnections() {
	m.metrics.Connections.Inc()
}

func (m *Monitor) DecConnections() {
	m.metrics.Connections.Dec()
}

// SetRooms replaces the per-variant room counts.
func (m *Monitor) SetRooms(counts map[string]int) {
	m.metrics.Rooms.Reset()
	for variant, n := range counts {
		m.metrics.Rooms.WithLabelValues(variant).Set(float64(n))
	}
}

func (m *Monitor) ObserveCommand(command, result string, duration time.Duration) {
	m.metrics.Commands.WithLabelValues(command, result).Inc()
	m.metrics.CommandLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncTimerFire(variant, purpose string) {
	m.metrics.TimerFires.WithLabelValues(variant, purpose).Inc()
}

func (m *Monitor) IncGamesFinished(variant, reason string) {
	m.metrics.GamesFinished.WithLabelValues(variant, reason).Inc()
}

func (m *Monitor) IncDroppedPackets() {
	m.metrics.DroppedPackets.Inc()
}

func (m *Monitor) IncRateLimited() {
	m.metrics.RateLimited.Inc()
}
