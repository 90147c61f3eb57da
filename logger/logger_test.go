package logger

import (
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := newLogger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := newLogger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestLogMetricInvokesSink(t *testing.T) {
	var gotComponent, gotMetric string
	var gotValue float64
	SetMetricSink(func(component, metric string, value float64, fields Fields) {
		gotComponent, gotMetric, gotValue = component, metric, value
	})
	defer SetMetricSink(nil)

	log := newLogger()
	log.LogMetric("loop", "reconnects", int64(3), "counter", nil)

	if gotComponent != "loop" || gotMetric != "reconnects" || gotValue != 3 {
		t.Fatalf("sink not invoked with expected args: %s %s %v", gotComponent, gotMetric, gotValue)
	}
}
