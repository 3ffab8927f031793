package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meshview"

// Failure classes for ConnectionFailed.
const (
	FailureFraming = "framing"
	FailureDecode  = "decode"
	FailureIO      = "io"
	FailureBridge  = "bridge"
)

// Recorder holds the viewer counters. A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	connections       prometheus.Counter
	framesReceived    *prometheus.CounterVec
	responsesSent     *prometheus.CounterVec
	connectionsFailed *prometheus.CounterVec
	meshesApplied     prometheus.Counter
	meshesRejected    prometheus.Counter
	inboundDepth      prometheus.Gauge
}

// New registers the viewer metrics in a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections accepted by the viewer listener",
		}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Decoded messages received, by variant",
		}, []string{"kind"}),
		responsesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_sent_total",
			Help:      "Responses written back to producers, by variant",
		}, []string{"kind"}),
		connectionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_failures_total",
			Help:      "Connections that ended with an error, by failure class",
		}, []string{"class"}),
		meshesApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meshes_applied_total",
			Help:      "Meshes handed to the renderer",
		}),
		meshesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meshes_rejected_total",
			Help:      "Meshes dropped because they failed validation",
		}),
		inboundDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbound_queue_depth",
			Help:      "Messages waiting for the update loop",
		}),
	}
}

// Registry exposes the underlying registry for exposition and tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ConnectionAccepted() {
	if r == nil {
		return
	}
	r.connections.Inc()
}

func (r *Recorder) FrameReceived(kind string) {
	if r == nil {
		return
	}
	r.framesReceived.WithLabelValues(kind).Inc()
}

func (r *Recorder) ResponseSent(kind string) {
	if r == nil {
		return
	}
	r.responsesSent.WithLabelValues(kind).Inc()
}

// ConnectionFailed counts a connection torn down with the given class.
func (r *Recorder) ConnectionFailed(class string) {
	if r == nil {
		return
	}
	r.connectionsFailed.WithLabelValues(class).Inc()
}

func (r *Recorder) MeshApplied() {
	if r == nil {
		return
	}
	r.meshesApplied.Inc()
}

func (r *Recorder) MeshRejected() {
	if r == nil {
		return
	}
	r.meshesRejected.Inc()
}

// SetInboundDepth records how many messages the loop has yet to poll.
func (r *Recorder) SetInboundDepth(n int) {
	if r == nil {
		return
	}
	r.inboundDepth.Set(float64(n))
}

// Counter accessors for tests and status output.

func (r *Recorder) FramesReceived(kind string) prometheus.Counter {
	return r.framesReceived.WithLabelValues(kind)
}

func (r *Recorder) ConnectionFailures(class string) prometheus.Counter {
	return r.connectionsFailed.WithLabelValues(class)
}

func (r *Recorder) Connections() prometheus.Counter { return r.connections }

func (r *Recorder) MeshesApplied() prometheus.Counter { return r.meshesApplied }
