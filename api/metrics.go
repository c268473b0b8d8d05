package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "admin-alerts/api"
	commandSpanName    = "POST /api/events"
	commandEventName   = "admin.command.request"
	commandEventDomain = "admin-alerts"
	observabilityEvent = "observability.event"
	commandRoute       = "/api/events"
	attrPrefix         = "alerts.command."
)

// commandRequestMetrics records one inbound command request as a span and a
// structured log entry with the same attributes.
type commandRequestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	authDuration  time.Duration
	applyDuration time.Duration
	event         string
	orderID       int64
	status        string
	changed       bool
	errorStage    string
}

func newCommandRequestMetrics(ctx context.Context, logger *log.Logger) (*commandRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, commandSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &commandRequestMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *commandRequestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *commandRequestMetrics) ObserveApply(d time.Duration) {
	if d > 0 {
		m.applyDuration = d
	}
}

func (m *commandRequestMetrics) SetCommand(event string, orderID int64, status string) {
	m.event = event
	m.orderID = orderID
	m.status = status
}

func (m *commandRequestMetrics) SetChanged(changed bool) { m.changed = changed }

func (m *commandRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

func (m *commandRequestMetrics) attributes(status int, err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.route", commandRoute),
		attribute.Int("http.status_code", status),
		attribute.Float64(attrPrefix+"total_ms", durationToMillis(time.Since(m.start))),
		attribute.Bool(attrPrefix+"changed", m.changed),
	}
	if m.event != "" {
		attrs = append(attrs, attribute.String(attrPrefix+"event", m.event))
	}
	if m.orderID > 0 {
		attrs = append(attrs, attribute.Int64(attrPrefix+"order_id", m.orderID))
	}
	if m.status != "" {
		attrs = append(attrs, attribute.String(attrPrefix+"status", m.status))
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64(attrPrefix+"auth_ms", durationToMillis(m.authDuration)))
	}
	if m.applyDuration > 0 {
		attrs = append(attrs, attribute.Float64(attrPrefix+"apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String(attrPrefix+"error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	return attrs
}

// Log ends the span and writes the observability entry.
func (m *commandRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	sevText, sevNumber := severityForStatus(status, err)
	attrs := m.attributes(status, err)

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", commandEventName),
		attribute.String("event.domain", commandEventDomain),
		attribute.String("severity_text", sevText),
		attribute.Int("severity_number", sevNumber),
	}, attrs...)
	m.span.SetAttributes(attrs...)
	m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
	if sevText == "ERROR" {
		desc := http.StatusText(status)
		if err != nil {
			desc = err.Error()
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	sc := m.span.SpanContext()
	m.span.End()

	if m.logger == nil {
		return
	}
	fieldsAttrs := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		fieldsAttrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      commandEventName,
		"event.domain":    commandEventDomain,
		"severity_text":   sevText,
		"severity_number": sevNumber,
		"attributes":      fieldsAttrs,
	}
	if sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		fields["span_id"] = sc.SpanID().String()
	}
	entry := m.logger.WithFields(fields)
	switch sevText {
	case "ERROR":
		entry.Error(observabilityEvent)
	case "WARN":
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError || (status == 0 && err != nil):
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
