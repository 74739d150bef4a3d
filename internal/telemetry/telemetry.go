// Package telemetry registers the daemon's Prometheus-format counters and
// gauges, following the teacher's metrics.Set-per-component idiom
// (pkg/api/api0/metrics.go's apiMetrics).
package telemetry

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics holds every counter/gauge this daemon exposes.
type Metrics struct {
	set *metrics.Set

	PacketsReceived        *metrics.Counter
	PacketDecodeErrors     *metrics.Counter
	AnnouncementsSent      *metrics.Counter
	AnnouncementSendErrors *metrics.Counter
	NeighborTimeouts       *metrics.Counter
	Commands               *metrics.Counter
}

// New creates and registers a fresh metric set.
func New() *Metrics {
	set := metrics.NewSet()

	return &Metrics{
		set:                    set,
		PacketsReceived:        set.NewCounter(`dvrouted_packets_received_total`),
		PacketDecodeErrors:     set.NewCounter(`dvrouted_packets_decode_error_total`),
		AnnouncementsSent:      set.NewCounter(`dvrouted_announcements_sent_total`),
		AnnouncementSendErrors: set.NewCounter(`dvrouted_announcements_send_error_total`),
		NeighborTimeouts:       set.NewCounter(`dvrouted_neighbor_timeouts_total`),
		Commands:               set.NewCounter(`dvrouted_commands_total`),
	}
}

// RegisterGauge adds a lazily-sampled gauge, e.g. the count of currently
// reachable destinations. fn is called each time metrics are scraped.
func (m *Metrics) RegisterGauge(name string, fn func() float64) {
	m.set.NewGauge(name, fn)
}

// WritePrometheus writes the registered metrics as Prometheus text exposition.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
