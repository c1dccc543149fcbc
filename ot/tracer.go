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

// Package ot exposes an httptracing.Tracer as an opentracing.Tracer, so
// code instrumented with the OpenTracing API reports through the same
// recorder and propagates the same trace context as the HTTP middleware.
package ot

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/openzipkin/zipkin-go/model"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
)

type tracerImpl struct {
	tracer             *httptracing.Tracer
	textPropagator     *textMapPropagator
	accessorPropagator *accessorPropagator
	opts               *TracerOptions
}

// Wrap receives an httptracing tracer and returns an opentracing
// tracer
func Wrap(tr *httptracing.Tracer, opts ...TracerOption) opentracing.Tracer {
	t := &tracerImpl{
		tracer: tr,
		opts:   &TracerOptions{},
	}
	for _, o := range opts {
		o(t.opts)
	}

	style := tr.B3InjectOption()
	if t.opts.b3InjectOpt != nil {
		style = *t.opts.b3InjectOpt
	}
	t.textPropagator = &textMapPropagator{style: styleOf(style)}
	t.accessorPropagator = &accessorPropagator{}

	return t
}

// Unwrap returns the httptracing span behind sp, so it can be attached to a
// context with httptracing.ContextWithSpan.
func Unwrap(sp opentracing.Span) (*httptracing.Span, bool) {
	s, ok := sp.(*spanImpl)
	if !ok {
		return nil, false
	}
	return s.span, true
}

func (t *tracerImpl) StartSpan(operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	var startSpanOptions opentracing.StartSpanOptions
	for _, opt := range opts {
		opt.Apply(&startSpanOptions)
	}

	var sopts []httptracing.SpanOption

	// Parent
	for _, ref := range startSpanOptions.References {
		if parent, ok := traceContext(ref.ReferencedContext); ok {
			sopts = append(sopts, httptracing.WithParent(parent))
			break
		}
	}

	if !startSpanOptions.StartTime.IsZero() {
		sopts = append(sopts, httptracing.WithStartTime(startSpanOptions.StartTime))
	}

	kind, remote, tags := parseTags(startSpanOptions.Tags)
	sopts = append(sopts, httptracing.WithKind(kind))

	span := t.tracer.StartSpan(operationName, sopts...)
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		span.Tag(key, tags[key])
	}

	sp := &spanImpl{
		span:   span,
		tracer: t,
	}
	if !remote.Empty() {
		sp.remote = *remote
		span.SetRemoteEndpoint(remote)
	}
	if t.opts.observer != nil {
		observer, _ := t.opts.observer.OnStartSpan(sp, operationName, startSpanOptions)
		sp.observer = observer
	}

	return sp
}

func parseKind(val interface{}) (httptracing.Kind, bool) {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case ext.SpanKindEnum:
		s = string(v)
	default:
		return httptracing.KindLocal, false
	}
	switch strings.ToLower(s) {
	case "server":
		return httptracing.KindServer, true
	case "client":
		return httptracing.KindClient, true
	}
	return httptracing.KindLocal, false
}

func parseTags(t map[string]interface{}) (httptracing.Kind, *model.Endpoint, map[string]string) {
	kind := httptracing.KindLocal
	tags := map[string]string{}
	remoteEndpoint := &model.Endpoint{}

	for key, val := range t {
		switch key {
		case string(ext.SpanKind):
			k, ok := parseKind(val)
			if !ok {
				tags[key] = fmt.Sprint(val)
				continue
			}
			kind = k
		case string(ext.SamplingPriority):
		default:
			if !setPeer(remoteEndpoint, key, val) {
				tags[key] = tagValue(key, val)
			}
		}
	}

	return kind, remoteEndpoint, tags
}

// setPeer applies a peer.* tag to e and reports whether key was one.
func setPeer(e *model.Endpoint, key string, val interface{}) bool {
	switch key {
	case string(ext.PeerService):
		e.ServiceName, _ = val.(string)
	case string(ext.PeerHostIPv4):
		switch v := val.(type) {
		case string:
			e.IPv4 = net.ParseIP(v)
		case uint32:
			e.IPv4 = net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		}
	case string(ext.PeerHostIPv6):
		ipv6, _ := val.(string)
		e.IPv6 = net.ParseIP(ipv6)
	case string(ext.PeerPort):
		e.Port = portValue(val)
	default:
		return false
	}
	return true
}

func portValue(val interface{}) uint16 {
	switch v := val.(type) {
	case uint16:
		return v
	case int:
		return uint16(v)
	case string:
		p, _ := strconv.ParseUint(v, 10, 16)
		return uint16(p)
	}
	return 0
}

func tagValue(key string, val interface{}) string {
	if key == string(ext.Error) {
		if b, ok := val.(bool); ok && !b {
			return ""
		}
	}
	return fmt.Sprint(val)
}

func (t *tracerImpl) Inject(sc opentracing.SpanContext, format interface{}, carrier interface{}) error {
	c, ok := traceContext(sc)
	if !ok {
		return opentracing.ErrInvalidSpanContext
	}
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
		return t.textPropagator.Inject(c, carrier)
	case opentracing.Binary:
		// try with textMapPropagator
		return t.textPropagator.Inject(c, carrier)
	}
	if _, ok := format.(delegatorType); ok {
		return t.accessorPropagator.Inject(c, carrier)
	}
	return opentracing.ErrUnsupportedFormat
}

func (t *tracerImpl) Extract(format interface{}, carrier interface{}) (opentracing.SpanContext, error) {
	switch format {
	case opentracing.TextMap, opentracing.HTTPHeaders:
		return t.textPropagator.Extract(carrier)
	case opentracing.Binary:
		// try with textMapPropagator
		return t.textPropagator.Extract(carrier)
	}
	if _, ok := format.(delegatorType); ok {
		return t.accessorPropagator.Extract(carrier)
	}
	return nil, opentracing.ErrUnsupportedFormat
}

func finishTime(opts opentracing.FinishOptions) time.Time {
	if opts.FinishTime.IsZero() {
		return time.Now()
	}
	return opts.FinishTime
}
