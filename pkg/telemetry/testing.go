package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Recorder is a Telemetry implementation that captures recorded values
// for assertions in tests.
type Recorder struct {
	mu         sync.Mutex
	Histograms map[string][]float64
	Counters   map[string]int64
	Spans      []string
}

var _ Telemetry = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Histograms: make(map[string][]float64),
		Counters:   make(map[string]int64),
	}
}

// RecordHistogram captures the value under the metric name.
func (r *Recorder) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Histograms[name] = append(r.Histograms[name], value)
}

// RecordCounter accumulates the value under the metric name.
func (r *Recorder) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters[name] += value
}

// StartSpan records the span name and returns a no-op span.
func (r *Recorder) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	r.mu.Lock()
	r.Spans = append(r.Spans, name)
	r.mu.Unlock()
	return ctx, trace.SpanFromContext(ctx)
}

// Shutdown is a no-op.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return nil
}

// CounterValue returns the accumulated value for a counter.
func (r *Recorder) CounterValue(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counters[name]
}

// HistogramCount returns how many values a histogram received.
func (r *Recorder) HistogramCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Histograms[name])
}
