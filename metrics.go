package mqtt3

import (
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	// MetricTypeCounter is a monotonically increasing counter.
	MetricTypeCounter MetricType = 0
	// MetricTypeGauge is a value that can go up and down.
	MetricTypeGauge MetricType = 1
	// MetricTypeHistogram tracks distribution of values.
	MetricTypeHistogram MetricType = 2
)

// String returns the string representation of the metric type.
func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting metrics.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge

	// Histogram returns a histogram metric.
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter is a monotonically increasing counter.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()

	// Add adds the given value to the counter.
	Add(delta float64)

	// Value returns the current value.
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to the given value.
	Set(value float64)

	// Inc increments the gauge by 1.
	Inc()

	// Dec decrements the gauge by 1.
	Dec()

	// Add adds the given value to the gauge.
	Add(delta float64)

	// Sub subtracts the given value from the gauge.
	Sub(delta float64)

	// Value returns the current value.
	Value() float64
}

// Histogram tracks the distribution of values.
type Histogram interface {
	// Observe records a value.
	Observe(value float64)

	// ObserveDuration records a duration in seconds.
	ObserveDuration(d time.Duration)

	// Count returns the number of observations.
	Count() uint64

	// Sum returns the sum of all observations.
	Sum() float64
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return &noOpCounter{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return &noOpGauge{}
}

// Histogram returns a no-op histogram.
func (n *NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram {
	return &noOpHistogram{}
}

type noOpCounter struct{}

func (n *noOpCounter) Inc()           {}
func (n *noOpCounter) Add(_ float64)  {}
func (n *noOpCounter) Value() float64 { return 0 }

type noOpGauge struct{}

func (n *noOpGauge) Set(_ float64)  {}
func (n *noOpGauge) Inc()           {}
func (n *noOpGauge) Dec()           {}
func (n *noOpGauge) Add(_ float64)  {}
func (n *noOpGauge) Sub(_ float64)  {}
func (n *noOpGauge) Value() float64 { return 0 }

type noOpHistogram struct{}

func (n *noOpHistogram) Observe(_ float64)            {}
func (n *noOpHistogram) ObserveDuration(_ time.Duration) {}
func (n *noOpHistogram) Count() uint64                { return 0 }
func (n *noOpHistogram) Sum() float64                 { return 0 }

// Metric names recorded by a client connection.
const (
	// MetricConnectionsActive is 1 while the client holds an accepted connection.
	MetricConnectionsActive = "mqtt3.connections.active"

	// MetricConnectAttempts is the total number of connection attempts.
	MetricConnectAttempts = "mqtt3.connect.attempts"

	// MetricPacketsSent is the total number of packets sent.
	MetricPacketsSent = "mqtt3.packets.sent"

	// MetricPacketsReceived is the total number of packets received.
	MetricPacketsReceived = "mqtt3.packets.received"

	// MetricBytesSent is the total number of bytes sent.
	MetricBytesSent = "mqtt3.bytes.sent"

	// MetricMessagesReceived is the total number of messages delivered to the application.
	MetricMessagesReceived = "mqtt3.messages.received"

	// MetricMessagesPublished is the total number of messages published.
	MetricMessagesPublished = "mqtt3.messages.published"

	// MetricInflight is the number of actions awaiting an acknowledgement.
	MetricInflight = "mqtt3.inflight"

	// MetricDecodeErrors is the total number of inbound packets that failed to decode.
	MetricDecodeErrors = "mqtt3.decode.errors"

	// MetricAckLatency is the time from sending an action to its acknowledgement.
	MetricAckLatency = "mqtt3.ack.latency_seconds"
)

// Standard metric labels.
const (
	// LabelPacketType is the packet type label.
	LabelPacketType = "packet_type"

	// LabelQoS is the QoS level label.
	LabelQoS = "qos"
)

// connMetrics provides convenience methods for the metrics of one client.
type connMetrics struct {
	metrics Metrics
}

func newConnMetrics(m Metrics) *connMetrics {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &connMetrics{metrics: m}
}

func (c *connMetrics) connectAttempt() {
	c.metrics.Counter(MetricConnectAttempts, nil).Inc()
}

func (c *connMetrics) connected() {
	c.metrics.Gauge(MetricConnectionsActive, nil).Set(1)
}

func (c *connMetrics) disconnected() {
	c.metrics.Gauge(MetricConnectionsActive, nil).Set(0)
	c.metrics.Gauge(MetricInflight, nil).Set(0)
}

func (c *connMetrics) packetSent(t PacketType, n int) {
	c.metrics.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: t.String()}).Inc()
	c.metrics.Counter(MetricBytesSent, nil).Add(float64(n))
	if t == PacketPUBLISH {
		c.metrics.Counter(MetricMessagesPublished, nil).Inc()
	}
}

func (c *connMetrics) packetReceived(t PacketType) {
	c.metrics.Counter(MetricPacketsReceived, MetricLabels{LabelPacketType: t.String()}).Inc()
}

func (c *connMetrics) messageReceived(qos QoS) {
	labels := MetricLabels{LabelQoS: string(rune('0' + qos))}
	c.metrics.Counter(MetricMessagesReceived, labels).Inc()
}

func (c *connMetrics) decodeError() {
	c.metrics.Counter(MetricDecodeErrors, nil).Inc()
}

func (c *connMetrics) inflight(n int) {
	c.metrics.Gauge(MetricInflight, nil).Set(float64(n))
}

func (c *connMetrics) acked(d time.Duration) {
	c.metrics.Histogram(MetricAckLatency, nil).ObserveDuration(d)
}
