package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"admin-alerts/domain"
)

func TestCommandRequestMetricsLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newCommandRequestMetrics(context.Background(), logger)
	metrics.start = metrics.start.Add(-20 * time.Millisecond)
	metrics.ObserveAuth(2 * time.Millisecond)
	metrics.ObserveApply(5 * time.Millisecond)
	metrics.SetCommand(domain.StatusUpdateRequest, 42, "confirmed")
	metrics.SetChanged(true)
	metrics.Log(http.StatusAccepted, nil)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Message != observabilityEvent {
		t.Fatalf("unexpected log entry %#v", entry)
	}
	if entry.Level != log.InfoLevel || entry.Data["severity_text"] != "INFO" || entry.Data["severity_number"] != 9 {
		t.Fatalf("unexpected severity %v %v", entry.Level, entry.Data["severity_text"])
	}
	if entry.Data["event.name"] != commandEventName {
		t.Fatalf("unexpected event name %v", entry.Data["event.name"])
	}
	attrs, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrs["http.route"] != commandRoute || attrs[attrPrefix+"order_id"] != int64(42) || attrs[attrPrefix+"changed"] != true {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
	if traceID, ok := entry.Data["trace_id"].(string); !ok || traceID == "" {
		t.Fatalf("expected trace_id, got %#v", entry.Data["trace_id"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != commandSpanName || span.Status.Code != codes.Ok {
		t.Fatalf("unexpected span %s %v", span.Name, span.Status.Code)
	}
	spanAttrs := attributesToMap(span.Attributes)
	if code, ok := spanAttrs["http.status_code"].(int64); !ok || code != http.StatusAccepted {
		t.Fatalf("unexpected http.status_code %#v", spanAttrs["http.status_code"])
	}
	if spanAttrs[attrPrefix+"status"] != "confirmed" {
		t.Fatalf("unexpected status attribute %#v", spanAttrs[attrPrefix+"status"])
	}
	var found bool
	for _, ev := range span.Events {
		if ev.Name == observabilityEvent {
			found = true
			if attributesToMap(ev.Attributes)["event.domain"] != commandEventDomain {
				t.Fatalf("unexpected event attributes %#v", ev.Attributes)
			}
		}
	}
	if !found {
		t.Fatalf("expected observability.event span event, got %#v", span.Events)
	}
}

func TestCommandRequestMetricsError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newCommandRequestMetrics(context.Background(), logger)
	metrics.SetErrorStage("apply")
	boom := errors.New("storage failure")
	metrics.Log(http.StatusInternalServerError, boom)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error entry, got %#v", entry)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Status.Code != codes.Error || spans[0].Status.Description != boom.Error() {
		t.Fatalf("unexpected spans %#v", spans)
	}
	attrs := attributesToMap(spans[0].Attributes)
	if attrs[attrPrefix+"error_stage"] != "apply" || attrs["error.message"] != boom.Error() {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
}

func TestSeverityForStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		err        error
		wantText   string
		wantNumber int
	}{
		{name: "ok", status: http.StatusAccepted, wantText: "INFO", wantNumber: 9},
		{name: "warn", status: http.StatusNotFound, wantText: "WARN", wantNumber: 13},
		{name: "error", status: http.StatusInternalServerError, wantText: "ERROR", wantNumber: 17},
		{name: "errorFromErr", status: 0, err: errors.New("x"), wantText: "ERROR", wantNumber: 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotText, gotNumber := severityForStatus(tt.status, tt.err)
			if gotText != tt.wantText || gotNumber != tt.wantNumber {
				t.Fatalf("severityForStatus(%d, %v) = %s/%d, want %s/%d", tt.status, tt.err, gotText, gotNumber, tt.wantText, tt.wantNumber)
			}
		})
	}
}

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter, func()) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	return tp, exporter, func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	}
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}
