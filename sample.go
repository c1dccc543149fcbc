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
	"sync/atomic"

	zipkin "github.com/openzipkin/zipkin-go"
)

// SamplingPolicy decides whether a new trace is recorded. It is consulted
// once per trace, when the root span is created, and only when no upstream
// decision was propagated.
type SamplingPolicy interface {
	Sample(c TraceContext) bool
}

// Sampler functions return if a Zipkin span should be sampled, based on its
// traceID.
type Sampler func(id uint64) bool

// Sample implements SamplingPolicy using the low 64 bits of the trace id.
func (s Sampler) Sample(c TraceContext) bool {
	return s(c.TraceID.Low)
}

// Samplers backed by the zipkin-go implementations.
var (
	AlwaysSample Sampler = zipkin.AlwaysSample
	NeverSample  Sampler = zipkin.NeverSample
)

// NewModuloSampler samples traces whose id is divisible by mod.
func NewModuloSampler(mod uint64) Sampler {
	return Sampler(zipkin.NewModuloSampler(mod))
}

// NewBoundarySampler samples a rate of traces chosen by trace id, so that
// every process sharing salt agrees on the same traces.
func NewBoundarySampler(rate float64, salt int64) (Sampler, error) {
	s, err := zipkin.NewBoundarySampler(rate, salt)
	if err != nil {
		return nil, err
	}
	return Sampler(s), nil
}

// NewCountingSampler samples exactly rate*100 out of every 100 traces.
func NewCountingSampler(rate float64) (Sampler, error) {
	s, err := zipkin.NewCountingSampler(rate)
	if err != nil {
		return nil, err
	}
	return Sampler(s), nil
}

// EveryNthSampler samples the first trace and then every Nth one after it.
// Values of N below 2 sample everything.
type EveryNthSampler struct {
	n       uint64
	counter atomic.Uint64
}

// NewEveryNthSampler returns a counter based SamplingPolicy.
func NewEveryNthSampler(n uint64) *EveryNthSampler {
	return &EveryNthSampler{n: n}
}

// Sample implements SamplingPolicy.
func (s *EveryNthSampler) Sample(TraceContext) bool {
	if s.n < 2 {
		return true
	}
	return (s.counter.Add(1)-1)%s.n == 0
}
