// Package metrics holds the Prometheus collectors for the chat client and
// the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chat"

// Client holds the collectors updated by the connection controller.
type Client struct {
	ConnectAttempts    prometheus.Counter
	ValidationFailures prometheus.Counter
	ConnectionState    prometheus.Gauge
	FramesSent         *prometheus.CounterVec
	FramesReceived     prometheus.Counter
	SendsSkipped       *prometheus.CounterVec
}

// NewClient creates and registers client metrics on the given registry.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "connect_attempts_total",
			Help:      "Total number of accepted connect requests.",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "validation_failures_total",
			Help:      "Total number of connect requests rejected for a missing identity.",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "connection_state",
			Help:      "Current connection state (0=idle, 1=connecting, 2=open, 3=closed).",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "frames_sent_total",
			Help:      "Total number of frames written to the relay.",
		}, []string{"kind"}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "frames_received_total",
			Help:      "Total number of frames received from the relay.",
		}),
		SendsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "sends_skipped_total",
			Help:      "Total number of send requests that transmitted nothing.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.ConnectAttempts,
		m.ValidationFailures,
		m.ConnectionState,
		m.FramesSent,
		m.FramesReceived,
		m.SendsSkipped,
	)
	return m
}

// Relay holds the collectors updated by the relay hub.
type Relay struct {
	ActiveConnections prometheus.Gauge
	FramesBroadcast   prometheus.Counter
	FramesDropped     prometheus.Counter
}

// NewRelay creates and registers relay metrics on the given registry.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_connections",
			Help:      "Number of connected chat clients.",
		}),
		FramesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_broadcast_total",
			Help:      "Total number of lines broadcast to all clients.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_dropped_total",
			Help:      "Total number of per-client frames dropped on a full queue.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.FramesBroadcast, m.FramesDropped)
	return m
}
