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
	"fmt"
	"time"

	"github.com/openzipkin/zipkin-go/idgenerator"
	"github.com/openzipkin/zipkin-go/propagation/b3"
	"go.uber.org/zap"
)

// ErrNilRecorder is returned by NewTracer when no SpanRecorder is given.
var ErrNilRecorder = errors.New("httptracing: span recorder required")

// headerErrorInterval limits how often identical propagation errors are
// logged.
const headerErrorInterval = time.Minute

// Tracer opens, propagates and closes spans. All of its configuration is
// fixed at construction, so a single Tracer is safely shared by every
// request of the process.
type Tracer struct {
	opts      TracerOptions
	recorder  SpanRecorder
	logger    *zap.Logger
	headerLog *StateLogger
	b3Opts    []b3.InjectOption
}

// NewTracer returns a Tracer reporting finished spans to recorder.
func NewTracer(recorder SpanRecorder, opts ...TracerOption) (*Tracer, error) {
	if recorder == nil {
		return nil, ErrNilRecorder
	}
	t := &Tracer{recorder: recorder}
	for _, o := range opts {
		o(&t.opts)
	}

	if t.opts.sampler == nil {
		t.opts.sampler = AlwaysSample
	}
	if t.opts.spanNamer == nil {
		t.opts.spanNamer = DefaultSpanNamer
	}
	if t.opts.requestAnnotations == nil {
		t.opts.requestAnnotations = NoRequestAnnotations
	}
	if t.opts.responseAnnotations == nil {
		t.opts.responseAnnotations = NoResponseAnnotations
	}
	if t.opts.logger == nil {
		t.opts.logger = zap.NewNop()
	}
	if t.opts.idGenerator == nil {
		if t.opts.traceID128Bit {
			t.opts.idGenerator = idgenerator.NewRandom128()
		} else {
			t.opts.idGenerator = idgenerator.NewRandom64()
		}
	}
	if t.opts.localEndpoint == nil {
		e, err := NewEndpoint(DefaultServiceName, "")
		if err != nil {
			return nil, fmt.Errorf("default local endpoint: %w", err)
		}
		t.opts.localEndpoint = e
	}

	t.logger = t.opts.logger
	t.headerLog = NewStateLogger(t.logger, headerErrorInterval)
	t.b3Opts = t.opts.b3InjectOpt.injectOptions()
	return t, nil
}

// B3InjectOptions returns the zipkin-go injection options matching the
// configured B3 style, for integrations building their own injectors.
func (t *Tracer) B3InjectOptions() []b3.InjectOption {
	return t.b3Opts
}

// B3InjectOption returns the configured B3 injection style.
func (t *Tracer) B3InjectOption() B3InjectOption {
	return t.opts.b3InjectOpt
}

// Logger returns the logger the Tracer reports recoverable failures to.
func (t *Tracer) Logger() *zap.Logger {
	return t.logger
}

// SpanOption configures a span opened with StartSpan.
type SpanOption func(o *spanOptions)

type spanOptions struct {
	parent *TraceContext
	kind   Kind
	start  time.Time
}

// WithParent makes the span a child of c. When c carries no identifiers,
// the span starts a new trace that keeps the sampling decision of c.
func WithParent(c TraceContext) SpanOption {
	return func(o *spanOptions) {
		o.parent = &c
	}
}

// WithKind sets the kind of the span.
func WithKind(k Kind) SpanOption {
	return func(o *spanOptions) {
		o.kind = k
	}
}

// WithStartTime sets an explicit start time.
func WithStartTime(start time.Time) SpanOption {
	return func(o *spanOptions) {
		o.start = start
	}
}

// StartSpan opens a span without attaching it to a context. The lifecycle
// helpers StartServerSpan, StartClientSpan and StartLocalSpan cover the
// common cases; StartSpan is meant for bridges to other tracing APIs.
func (t *Tracer) StartSpan(name string, opts ...SpanOption) *Span {
	var o spanOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.start.IsZero() {
		o.start = time.Now()
	}
	return t.newSpan(name, o.kind, t.resolve(o.parent), o.start, nil)
}

// resolve returns the context of a new span caused by parent. A nil or
// identifier-less parent starts a new trace. The sampling policy is only
// consulted when no decision has been made yet.
func (t *Tracer) resolve(parent *TraceContext) TraceContext {
	var c TraceContext
	switch {
	case parent == nil:
		c = NewRootContext(t.opts.idGenerator)
	case parent.Valid():
		c = parent.DeriveChild(t.opts.idGenerator)
	default:
		c = NewRootContext(t.opts.idGenerator)
		c.Sampled, c.Debug = parent.Sampled, parent.Debug
	}
	if c.Sampled == Unset && !c.Debug {
		if t.sample(c) {
			c.Sampled = Yes
		} else {
			c.Sampled = No
		}
	}
	return c
}

func (t *Tracer) sample(c TraceContext) (sampled bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("sampling policy failed",
				zap.String("error", fmt.Sprint(r)),
				zap.Stringer("traceId", c.TraceID))
			sampled = false
		}
	}()
	return t.opts.sampler.Sample(c)
}

func (t *Tracer) newSpan(name string, kind Kind, c TraceContext, start time.Time, req Request) *Span {
	s := &Span{
		tracer: t,
		raw: RawSpan{
			Context:       c,
			Name:          name,
			Kind:          kind,
			Start:         start,
			LocalEndpoint: t.opts.localEndpoint,
		},
		nameResolved: req == nil,
		request:      req,
	}
	s.state.Store(stateOpen)
	if t.opts.newSpanEventListener != nil {
		s.event = t.opts.newSpanEventListener()
	}
	s.onCreate(name)
	return s
}

// record hands a finished span to the recorder. Recorder failures never
// reach the caller.
func (t *Tracer) record(sp RawSpan) {
	if !sp.Context.Reporting() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("span recorder failed",
				zap.String("error", fmt.Sprint(r)),
				zap.Stringer("traceId", sp.Context.TraceID))
		}
	}()
	t.recorder.RecordSpan(sp)
}
