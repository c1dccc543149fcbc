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

package ot

import (
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/openzipkin/zipkin-go/model"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
	"github.com/openzipkin-contrib/zipkin-go-httptracing/propagation/b3"
)

type delegatorType struct{}

// Delegator is the format to use for DelegatingCarrier.
var Delegator delegatorType

// DelegatingCarrier is a flexible carrier interface which can be implemented
// by types which have a means of storing the trace metadata and already know
// how to serialize themselves (for example, protocol buffers). Only the low
// 64 bits of the trace id are carried.
type DelegatingCarrier interface {
	SetState(traceID, spanID, parentSpanID uint64, sampled bool)
	State() (traceID, spanID, parentSpanID uint64, sampled bool)
}

type textMapPropagator struct {
	style b3.Style
}

func (p *textMapPropagator) Inject(c httptracing.TraceContext, carrier interface{}) error {
	return b3.Inject(c.Model(), carrier, p.style)
}

func (p *textMapPropagator) Extract(carrier interface{}) (opentracing.SpanContext, error) {
	sc, err := b3.Extract(carrier)
	if err != nil {
		return nil, err
	}
	return SpanContext(httptracing.FromModel(*sc)), nil
}

type accessorPropagator struct{}

func (p *accessorPropagator) Inject(c httptracing.TraceContext, carrier interface{}) error {
	ac, ok := carrier.(DelegatingCarrier)
	if !ok || ac == nil {
		return opentracing.ErrInvalidCarrier
	}
	ac.SetState(c.TraceID.Low, uint64(c.SpanID), uint64(c.ParentID), c.Reporting())
	return nil
}

func (p *accessorPropagator) Extract(carrier interface{}) (opentracing.SpanContext, error) {
	ac, ok := carrier.(DelegatingCarrier)
	if !ok || ac == nil {
		return nil, opentracing.ErrInvalidCarrier
	}

	traceID, spanID, parentSpanID, sampled := ac.State()
	if traceID == 0 || spanID == 0 {
		return nil, opentracing.ErrSpanContextNotFound
	}
	c := httptracing.TraceContext{
		TraceID:  model.TraceID{Low: traceID},
		SpanID:   model.ID(spanID),
		ParentID: model.ID(parentSpanID),
		Sampled:  httptracing.No,
	}
	if sampled {
		c.Sampled = httptracing.Yes
	}
	return SpanContext(c), nil
}

func styleOf(opt httptracing.B3InjectOption) b3.Style {
	switch opt {
	case httptracing.B3InjectSingle:
		return b3.Single
	case httptracing.B3InjectBoth:
		return b3.Both
	}
	return b3.Multi
}
