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

	"github.com/prometheus/client_golang/prometheus"
)

type recorderMetrics struct {
	queuedTotal  prometheus.Counter
	sentTotal    prometheus.Counter
	droppedTotal prometheus.Counter
}

// WithRecorderMetrics registers span counters for the Recorder with reg.
// Counters already registered by another Recorder are shared.
func WithRecorderMetrics(reg prometheus.Registerer) RecorderOption {
	return func(r *Recorder) {
		r.metrics = newRecorderMetrics(reg)
	}
}

func newRecorderMetrics(reg prometheus.Registerer) *recorderMetrics {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zipkin",
			Subsystem: "recorder",
			Name:      name,
			Help:      help,
		})
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
					return existing
				}
			}
		}
		return c
	}
	return &recorderMetrics{
		queuedTotal:  counter("spans_queued_total", "Spans accepted into the reporting queue."),
		sentTotal:    counter("spans_sent_total", "Spans handed to the zipkin reporter."),
		droppedTotal: counter("spans_dropped_total", "Spans dropped because the queue was full or closed."),
	}
}

func (m *recorderMetrics) queued() {
	if m != nil {
		m.queuedTotal.Inc()
	}
}

func (m *recorderMetrics) sent() {
	if m != nil {
		m.sentTotal.Inc()
	}
}

func (m *recorderMetrics) dropped() {
	if m != nil {
		m.droppedTotal.Inc()
	}
}
