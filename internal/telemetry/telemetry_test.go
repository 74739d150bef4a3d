package telemetry

import (
	"bytes"
	"strings"
	"testing"
)

func TestCountersAppearInPrometheusOutput(t *testing.T) {
	m := New()
	m.PacketsReceived.Inc()
	m.PacketsReceived.Inc()
	m.RegisterGauge("dvrouted_routes_reachable", func() float64 { return 3 })

	var buf bytes.Buffer
	m.WritePrometheus(&buf)
	out := buf.String()

	if !strings.Contains(out, "dvrouted_packets_received_total 2") {
		t.Fatalf("missing packet counter in output:\n%s", out)
	}
	if !strings.Contains(out, "dvrouted_routes_reachable 3") {
		t.Fatalf("missing gauge in output:\n%s", out)
	}
}
