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
	"context"

	"github.com/openzipkin/zipkin-go/idgenerator"
	"github.com/openzipkin/zipkin-go/model"
	"github.com/openzipkin/zipkin-go/propagation"
	"github.com/openzipkin/zipkin-go/propagation/b3"
)

// Decision is the tri-state sampling decision carried by a TraceContext.
type Decision int8

// Available Decision values. Unset means the decision is made locally.
const (
	Unset Decision = iota
	Yes
	No
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unset"
	}
}

func decisionFromModel(sampled *bool) Decision {
	switch {
	case sampled == nil:
		return Unset
	case *sampled:
		return Yes
	default:
		return No
	}
}

// TraceContext holds the identifiers that correlate a span with the rest of
// its trace. It is a value type and never changes once created.
type TraceContext struct {
	TraceID  model.TraceID
	SpanID   model.ID
	ParentID model.ID // zero for root spans
	Sampled  Decision
	Debug    bool
}

// NewRootContext returns the context of a new root span. The sampling
// decision is left Unset.
func NewRootContext(gen idgenerator.IDGenerator) TraceContext {
	traceID := gen.TraceID()
	return TraceContext{
		TraceID: traceID,
		SpanID:  gen.SpanID(traceID),
	}
}

// DeriveChild returns the context of a span caused by the span owning c.
func (c TraceContext) DeriveChild(gen idgenerator.IDGenerator) TraceContext {
	return TraceContext{
		TraceID:  c.TraceID,
		SpanID:   gen.SpanID(model.TraceID{}),
		ParentID: c.SpanID,
		Sampled:  c.Sampled,
		Debug:    c.Debug,
	}
}

// Parent returns the parent span id and whether one is present.
func (c TraceContext) Parent() (model.ID, bool) {
	return c.ParentID, c.ParentID != 0
}

// IsRoot reports whether c has no parent span.
func (c TraceContext) IsRoot() bool {
	return c.ParentID == 0
}

// Valid reports whether c carries both a trace id and a span id.
func (c TraceContext) Valid() bool {
	return !c.TraceID.Empty() && c.SpanID != 0
}

// Reporting reports whether spans with this context reach the SpanRecorder.
func (c TraceContext) Reporting() bool {
	return c.Debug || c.Sampled == Yes
}

// Model converts c into the zipkin-go representation.
func (c TraceContext) Model() model.SpanContext {
	sc := model.SpanContext{
		TraceID: c.TraceID,
		ID:      c.SpanID,
		Debug:   c.Debug,
	}
	if c.ParentID != 0 {
		parentID := c.ParentID
		sc.ParentID = &parentID
	}
	if !c.Debug && c.Sampled != Unset {
		sampled := c.Sampled == Yes
		sc.Sampled = &sampled
	}
	return sc
}

// FromModel converts a zipkin-go span context into a TraceContext.
func FromModel(sc model.SpanContext) TraceContext {
	c := TraceContext{
		TraceID: sc.TraceID,
		SpanID:  sc.ID,
		Sampled: decisionFromModel(sc.Sampled),
		Debug:   sc.Debug,
	}
	if sc.ParentID != nil {
		c.ParentID = *sc.ParentID
	}
	return c
}

// Inject writes c through the given propagation injector.
func (c TraceContext) Inject(inject propagation.Injector) error {
	return inject(c.Model())
}

// Serialize returns c as a set of B3 propagation headers.
func (c TraceContext) Serialize(opts ...b3.InjectOption) b3.Map {
	m := b3.Map{}
	_ = m.Inject(opts...)(c.Model())
	return m
}

// ParseTraceContext reads a TraceContext from a set of B3 headers. A nil
// context and nil error mean no trace information was present.
func ParseTraceContext(headers b3.Map) (*TraceContext, error) {
	return extractContext(headers.Extract)
}

func extractContext(extract propagation.Extractor) (*TraceContext, error) {
	sc, err := extract()
	if err != nil {
		return nil, err
	}
	if sc == nil || (sc.TraceID.Empty() && sc.Sampled == nil && !sc.Debug) {
		return nil, nil
	}
	c := FromModel(*sc)
	return &c, nil
}

type spanContextKey struct{}

// ContextWithSpan returns a copy of ctx carrying sp as the active span.
func ContextWithSpan(ctx context.Context, sp *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, sp)
}

// SpanFromContext returns the active span in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	sp, _ := ctx.Value(spanContextKey{}).(*Span)
	return sp
}
