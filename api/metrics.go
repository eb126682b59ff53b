package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	boardSpanName    = "board.request"
	boardEventName   = "board.request.metrics"
	boardEventDomain = "choreboard"
	boardAttrPrefix  = "choreboard.board."
)

type boardRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	route          string
	operation      string
	authDuration   time.Duration
	applyDuration  time.Duration
	saveDuration   time.Duration
	encodeDuration time.Duration
	tasksReturned  int
	errorStage     string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger, route, operation string) (*boardRequestMetrics, context.Context) {
	tracer := otel.GetTracerProvider().Tracer("choreboard/api")
	spanCtx, span := tracer.Start(ctx, boardSpanName, trace.WithSpanKind(trace.SpanKindServer))
	m := &boardRequestMetrics{
		logger:    logger,
		span:      span,
		start:     time.Now(),
		route:     route,
		operation: operation,
	}
	return m, spanCtx
}

func (m *boardRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *boardRequestMetrics) ObserveApply(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.applyDuration = duration
}

func (m *boardRequestMetrics) ObserveSave(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.saveDuration = duration
}

func (m *boardRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *boardRequestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log emits the request as a single observability event: structured log entry
// plus span attributes and a matching span event.
func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":                       m.route,
		boardAttrPrefix + "operation":      m.operation,
		boardAttrPrefix + "total_ms":       totalMs,
		boardAttrPrefix + "tasks_returned": m.tasksReturned,
	}
	spanAttrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.String(boardAttrPrefix+"operation", m.operation),
		attribute.Float64(boardAttrPrefix+"total_ms", totalMs),
		attribute.Int(boardAttrPrefix+"tasks_returned", m.tasksReturned),
	}
	if m.authDuration > 0 {
		attrs[boardAttrPrefix+"auth_ms"] = durationToMillis(m.authDuration)
		spanAttrs = append(spanAttrs, attribute.Float64(boardAttrPrefix+"auth_ms", durationToMillis(m.authDuration)))
	}
	if m.applyDuration > 0 {
		attrs[boardAttrPrefix+"apply_ms"] = durationToMillis(m.applyDuration)
		spanAttrs = append(spanAttrs, attribute.Float64(boardAttrPrefix+"apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.saveDuration > 0 {
		attrs[boardAttrPrefix+"save_ms"] = durationToMillis(m.saveDuration)
		spanAttrs = append(spanAttrs, attribute.Float64(boardAttrPrefix+"save_ms", durationToMillis(m.saveDuration)))
	}
	if m.encodeDuration > 0 {
		attrs[boardAttrPrefix+"encode_ms"] = durationToMillis(m.encodeDuration)
		spanAttrs = append(spanAttrs, attribute.Float64(boardAttrPrefix+"encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs[boardAttrPrefix+"error_stage"] = m.errorStage
		spanAttrs = append(spanAttrs, attribute.String(boardAttrPrefix+"error_stage", m.errorStage))
	}

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", boardEventName),
		attribute.String("event.domain", boardEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, spanAttrs...)
	if err != nil {
		attrs["error.message"] = err.Error()
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(spanAttrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if severityText == "ERROR" {
			desc := m.errorStage
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      boardEventName,
		"event.domain":    boardEventDomain,
		"status":          status,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		sc := m.span.SpanContext()
		if sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		if sc.HasSpanID() {
			fields["span_id"] = sc.SpanID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severityText), "observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func levelForSeverity(text string) log.Level {
	switch text {
	case "ERROR":
		return log.ErrorLevel
	case "WARN":
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
