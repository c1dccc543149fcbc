// Copyright 2022 The OpenZipkin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httptracing

import (
	"errors"
	"sync"
	"time"

	"github.com/openzipkin/zipkin-go/reporter"
	"go.uber.org/zap"
)

// A SpanRecorder handles all of the RawSpan data generated by an associated
// Tracer. RecordSpan is called once per finished, reporting span, from the
// goroutine that closed it, and must not block.
type SpanRecorder interface {
	RecordSpan(span RawSpan)
}

const (
	defaultQueueSize     = 1000
	defaultDropLogPeriod = 10 * time.Second
)

var errQueueFull = errors.New("span queue full, disposing span")

// Recorder is a SpanRecorder that converts spans to the Zipkin v2 model and
// forwards them to a zipkin-go Reporter from a background goroutine.
// RecordSpan never waits: when the queue is full the span is dropped.
type Recorder struct {
	reporter  reporter.Reporter
	logger    *zap.Logger
	dropLog   *StateLogger
	queueSize int
	metrics   *recorderMetrics
	spanc     chan RawSpan
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	// held for reading while a span is submitted, for writing while the
	// Recorder stops accepting spans.
	mu     sync.RWMutex
	closed bool
}

// RecorderOption sets a parameter for the Recorder.
type RecorderOption func(r *Recorder)

// RecorderLogger sets the logger used to report dropped spans.
func RecorderLogger(logger *zap.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// RecorderQueueSize sets the number of spans buffered before new ones are
// dropped. The default is 1000.
func RecorderQueueSize(n int) RecorderOption {
	return func(r *Recorder) { r.queueSize = n }
}

// NewRecorder creates a new Recorder backed by the provided Reporter.
func NewRecorder(rep reporter.Reporter, options ...RecorderOption) *Recorder {
	r := &Recorder{
		reporter:  rep,
		logger:    zap.NewNop(),
		queueSize: defaultQueueSize,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, option := range options {
		option(r)
	}
	if r.queueSize < 1 {
		r.queueSize = 1
	}
	r.dropLog = NewStateLogger(r.logger, defaultDropLogPeriod)
	r.spanc = make(chan RawSpan, r.queueSize)

	go r.loop()
	return r
}

// RecordSpan implements SpanRecorder.
// attempts a non blocking send on the channel.
func (r *Recorder) RecordSpan(sp RawSpan) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.metrics.dropped()
		return
	}
	select {
	case r.spanc <- sp:
		r.metrics.queued()
	default:
		r.metrics.dropped()
		r.dropLog.LogError(errQueueFull)
	}
}

// Close stops accepting spans, forwards the queued ones and closes the
// underlying Reporter. Later calls return the result of the first one.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.quit)
		r.mu.Unlock()

		<-r.done
		r.closeErr = r.reporter.Close()
	})
	return r.closeErr
}

func (r *Recorder) loop() {
	defer close(r.done)
	for {
		select {
		case sp := <-r.spanc:
			r.send(sp)
		case <-r.quit:
			for {
				select {
				case sp := <-r.spanc:
					r.send(sp)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) send(sp RawSpan) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("zipkin reporter panicked", zap.Any("panic", v))
		}
	}()
	r.reporter.Send(sp.Model())
	r.metrics.sent()
	if len(r.spanc) == 0 {
		r.dropLog.Fixed("span queue drained")
	}
}

// InMemoryRecorder is a simple thread-safe implementation of SpanRecorder
// that stores all reported spans in memory, accessible via GetSpans.
type InMemoryRecorder struct {
	mtx   sync.Mutex
	spans []RawSpan
}

// NewInMemoryRecorder creates a new InMemoryRecorder.
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// RecordSpan implements SpanRecorder.
func (r *InMemoryRecorder) RecordSpan(span RawSpan) {
	r.mtx.Lock()
	r.spans = append(r.spans, span)
	r.mtx.Unlock()
}

// GetSpans returns a copy of the recorded spans.
func (r *InMemoryRecorder) GetSpans() []RawSpan {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]RawSpan(nil), r.spans...)
}

// Reset clears the recorded spans.
func (r *InMemoryRecorder) Reset() {
	r.mtx.Lock()
	r.spans = nil
	r.mtx.Unlock()
}

// NopRecorder discards every span.
type NopRecorder struct{}

// RecordSpan implements SpanRecorder.
func (NopRecorder) RecordSpan(RawSpan) {}
