package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pixelctl"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"controller", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"controller", "method", "route", "status"},
	)
	udpDatagrams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "udp",
			Name:      "datagrams_total",
			Help:      "Datagrams sent or received.",
		},
		[]string{"role", "direction"},
	)
	udpBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "udp",
			Name:      "bytes_total",
			Help:      "Datagram payload bytes sent or received.",
		},
		[]string{"role", "direction"},
	)
	udpSendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "udp",
			Name:      "send_errors_total",
			Help:      "Datagram sends that failed at the socket.",
		},
		[]string{"role"},
	)
	udpDecodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "udp",
			Name:      "decode_failures_total",
			Help:      "Received datagrams dropped because they did not decode.",
		},
		[]string{"role"},
	)
	listenerDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "drops_total",
			Help:      "Messages dropped because a listener mailbox was full.",
		},
		[]string{"role"},
	)
	listenerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "panics_total",
			Help:      "Listener invocations that panicked.",
		},
		[]string{"role"},
	)
	fleetDevices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "devices",
			Help:      "Known devices by state.",
		},
		[]string{"state"},
	)
	configResends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "config_resends_total",
			Help:      "FirmwareConfig resends to drifted devices.",
		},
		[]string{"host"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			udpDatagrams, udpBytes, udpSendErrors, udpDecodeFailures,
			listenerDrops, listenerPanics,
			fleetDevices, configResends,
		)
	})
}

func RecordHTTPRequest(controller, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(controller, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(controller, method, route, statusLabel).Observe(duration.Seconds())
}

// RecordDatagram counts one datagram; direction is "in" or "out".
func RecordDatagram(role, direction string, n int) {
	RegisterMetrics()
	udpDatagrams.WithLabelValues(role, direction).Inc()
	udpBytes.WithLabelValues(role, direction).Add(float64(n))
}

func RecordSendError(role string) {
	RegisterMetrics()
	udpSendErrors.WithLabelValues(role).Inc()
}

func RecordDecodeFailure(role string) {
	RegisterMetrics()
	udpDecodeFailures.WithLabelValues(role).Inc()
}

func RecordListenerDrop(role string) {
	RegisterMetrics()
	listenerDrops.WithLabelValues(role).Inc()
}

func RecordListenerPanic(role string) {
	RegisterMetrics()
	listenerPanics.WithLabelValues(role).Inc()
}

// SetFleetDevices publishes device counts by state.
func SetFleetDevices(total, stale, drifted int) {
	RegisterMetrics()
	fleetDevices.WithLabelValues("total").Set(float64(total))
	fleetDevices.WithLabelValues("stale").Set(float64(stale))
	fleetDevices.WithLabelValues("drifted").Set(float64(drifted))
}

func RecordConfigResend(host string) {
	RegisterMetrics()
	configResends.WithLabelValues(host).Inc()
}
