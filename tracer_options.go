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
	"github.com/openzipkin/zipkin-go/idgenerator"
	"github.com/openzipkin/zipkin-go/model"
	"github.com/openzipkin/zipkin-go/propagation/b3"
	"go.uber.org/zap"
)

// B3InjectOption selects the B3 header style written on outbound calls.
type B3InjectOption int

// Available B3InjectOption values
const (
	B3InjectStandard B3InjectOption = iota
	B3InjectSingle
	B3InjectBoth
)

func (o B3InjectOption) injectOptions() []b3.InjectOption {
	switch o {
	case B3InjectSingle:
		return []b3.InjectOption{b3.WithSingleHeaderOnly()}
	case B3InjectBoth:
		return []b3.InjectOption{b3.WithSingleAndMultiHeader()}
	default:
		return nil
	}
}

// TracerOptions holds the configuration of a Tracer. It is frozen when the
// Tracer is created.
type TracerOptions struct {
	sampler              SamplingPolicy
	spanNamer            SpanNamer
	requestAnnotations   RequestAnnotationExtractor
	responseAnnotations  ResponseAnnotationExtractor
	localEndpoint        *model.Endpoint
	logger               *zap.Logger
	idGenerator          idgenerator.IDGenerator
	traceID128Bit        bool
	b3InjectOpt          B3InjectOption
	newSpanEventListener func() func(SpanEvent)
}

// TracerOption allows for functional options.
// See: http://dave.cheney.net/2014/10/17/functional-options-for-friendly-apis
type TracerOption func(opts *TracerOptions)

// WithSampler sets the policy consulted for new traces. The default samples
// every trace.
func WithSampler(sampler SamplingPolicy) TracerOption {
	return func(opts *TracerOptions) {
		opts.sampler = sampler
	}
}

// WithSpanNamer sets the SpanNamer used for server and client spans.
func WithSpanNamer(namer SpanNamer) TracerOption {
	return func(opts *TracerOptions) {
		opts.spanNamer = namer
	}
}

// WithRequestAnnotations sets the extractor applied when a span opens.
func WithRequestAnnotations(fn RequestAnnotationExtractor) TracerOption {
	return func(opts *TracerOptions) {
		opts.requestAnnotations = fn
	}
}

// WithResponseAnnotations sets the extractor applied when a span closes.
func WithResponseAnnotations(fn ResponseAnnotationExtractor) TracerOption {
	return func(opts *TracerOptions) {
		opts.responseAnnotations = fn
	}
}

// WithLocalEndpoint sets the endpoint attached to every span.
func WithLocalEndpoint(e *model.Endpoint) TracerOption {
	return func(opts *TracerOptions) {
		opts.localEndpoint = e
	}
}

// WithLogger sets the logger used to report recoverable tracing failures.
func WithLogger(logger *zap.Logger) TracerOption {
	return func(opts *TracerOptions) {
		opts.logger = logger
	}
}

// WithIDGenerator overrides the trace and span id generator.
func WithIDGenerator(gen idgenerator.IDGenerator) TracerOption {
	return func(opts *TracerOptions) {
		opts.idGenerator = gen
	}
}

// WithTraceID128Bit makes root spans use 128 bit trace ids.
func WithTraceID128Bit(val bool) TracerOption {
	return func(opts *TracerOptions) {
		opts.traceID128Bit = val
	}
}

// WithB3InjectOption sets the B3 injection style for outbound calls.
func WithB3InjectOption(b3InjectOption B3InjectOption) TracerOption {
	return func(opts *TracerOptions) {
		opts.b3InjectOpt = b3InjectOption
	}
}

// WithSpanEventListener registers a factory whose listener receives the
// SpanEvents of each new span.
func WithSpanEventListener(fn func() func(SpanEvent)) TracerOption {
	return func(opts *TracerOptions) {
		opts.newSpanEventListener = fn
	}
}
