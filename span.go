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
	"sync"
	"sync/atomic"
	"time"

	"github.com/openzipkin/zipkin-go/model"
)

// Kind is the role of a span in an RPC.
type Kind int8

// Available span kinds.
const (
	KindLocal Kind = iota
	KindServer
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "local"
	}
}

// Model returns the zipkin-go kind. Local spans have no kind.
func (k Kind) Model() model.Kind {
	switch k {
	case KindServer:
		return model.Server
	case KindClient:
		return model.Client
	default:
		return model.Undetermined
	}
}

// Core annotations marking the boundaries of RPC spans.
const (
	ServerRecv = "sr"
	ServerSend = "ss"
	ClientSend = "cs"
	ClientRecv = "cr"
)

// Tag keys written by the lifecycles on failure.
const (
	ErrorKey     = "error"
	ErrorKindKey = "error.kind"
)

// Annotation is a timestamped entry on a span. Events have an empty Value
// and carry their name in Key; key/value pairs become tags when reported.
type Annotation struct {
	Key       string
	Value     string
	Timestamp time.Time
}

// IsEvent reports whether a is a bare event rather than a tag.
func (a Annotation) IsEvent() bool {
	return a.Value == ""
}

func isCoreAnnotation(key string) bool {
	switch key {
	case ServerRecv, ServerSend, ClientSend, ClientRecv:
		return true
	}
	return false
}

// RawSpan is the immutable record of a finished span.
type RawSpan struct {
	Context        TraceContext
	Name           string
	Kind           Kind
	Start          time.Time
	Duration       time.Duration
	Annotations    []Annotation
	LocalEndpoint  *model.Endpoint
	RemoteEndpoint *model.Endpoint
}

// Tags returns the key/value annotations of sp. Later values win.
func (sp RawSpan) Tags() map[string]string {
	var tags map[string]string
	for _, a := range sp.Annotations {
		if a.IsEvent() {
			continue
		}
		if tags == nil {
			tags = make(map[string]string)
		}
		tags[a.Key] = a.Value
	}
	return tags
}

// Events returns the event names of sp in the order they were recorded.
func (sp RawSpan) Events() []string {
	var events []string
	for _, a := range sp.Annotations {
		if a.IsEvent() {
			events = append(events, a.Key)
		}
	}
	return events
}

// Model converts sp into the Zipkin v2 span model. The core RPC annotations
// are implied by kind, timestamp and duration and are not repeated.
func (sp RawSpan) Model() model.SpanModel {
	m := model.SpanModel{
		SpanContext:    sp.Context.Model(),
		Name:           sp.Name,
		Kind:           sp.Kind.Model(),
		Timestamp:      sp.Start,
		Duration:       sp.Duration,
		LocalEndpoint:  sp.LocalEndpoint,
		RemoteEndpoint: sp.RemoteEndpoint,
		Tags:           sp.Tags(),
	}
	for _, a := range sp.Annotations {
		if !a.IsEvent() || isCoreAnnotation(a.Key) {
			continue
		}
		m.Annotations = append(m.Annotations, model.Annotation{
			Timestamp: a.Timestamp,
			Value:     a.Key,
		})
	}
	return m
}

const (
	stateOpen int32 = iota + 1
	stateClosed
)

// Span is an open span owned by the lifecycle that created it. Its trace
// context never changes; everything else may be mutated until it is
// finished, after which all mutations are ignored.
type Span struct {
	tracer *Tracer
	state  atomic.Int32

	event      func(SpanEvent)
	eventMu    sync.Mutex
	eventsDone bool

	mu           sync.Mutex
	raw          RawSpan
	nameResolved bool
	request      Request
}

// Context returns the trace context of the span.
func (s *Span) Context() TraceContext {
	return s.raw.Context
}

// Kind returns the kind of the span.
func (s *Span) Kind() Kind {
	return s.raw.Kind
}

// Reporting reports whether the span will reach the SpanRecorder.
func (s *Span) Reporting() bool {
	return s.raw.Context.Reporting()
}

// IsOpen reports whether the span has not been finished yet.
func (s *Span) IsOpen() bool {
	return s.state.Load() == stateOpen
}

// Name returns the current span name.
func (s *Span) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw.Name
}

// SetName overrides the span name. A name set this way is never replaced by
// the SpanNamer.
func (s *Span) SetName(name string) {
	if !s.IsOpen() {
		return
	}
	s.mu.Lock()
	s.raw.Name = name
	s.nameResolved = true
	s.mu.Unlock()
}

// Tag adds a key/value annotation. Empty values are ignored.
func (s *Span) Tag(key, value string) {
	if value == "" || !s.IsOpen() {
		return
	}
	s.annotate(Annotation{Key: key, Value: value, Timestamp: time.Now()})
}

// Annotate adds a timestamped event. A zero timestamp means now.
func (s *Span) Annotate(t time.Time, event string) {
	if event == "" || !s.IsOpen() {
		return
	}
	if t.IsZero() {
		t = time.Now()
	}
	s.annotate(Annotation{Key: event, Timestamp: t})
}

// SetRemoteEndpoint records the peer of an RPC span.
func (s *Span) SetRemoteEndpoint(e *model.Endpoint) {
	if !s.IsOpen() {
		return
	}
	s.mu.Lock()
	s.raw.RemoteEndpoint = e
	s.mu.Unlock()
}

// Annotations returns a copy of the annotations recorded so far.
func (s *Span) Annotations() []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Annotation(nil), s.raw.Annotations...)
}

func (s *Span) annotate(a Annotation) {
	s.mu.Lock()
	s.raw.Annotations = append(s.raw.Annotations, a)
	s.mu.Unlock()
	s.onAnnotate(a)
}

func (s *Span) tags(tags map[string]string, t time.Time) {
	for _, key := range sortedKeys(tags) {
		if v := tags[key]; v != "" {
			s.annotate(Annotation{Key: key, Value: v, Timestamp: t})
		}
	}
}

// Finish closes the span without a response. It is safe to call more than
// once; only the first call has an effect.
func (s *Span) Finish() {
	s.FinishWith(nil, nil)
}

// FinishWithError closes the span, tagging it with err when not nil.
func (s *Span) FinishWithError(err error) {
	s.FinishWith(nil, err)
}

// FinishWith runs the closing transition of the span lifecycle: it applies
// response annotations and deferred naming, records the closing core
// annotation or the error, and hands the span to the SpanRecorder unless it
// is non-reporting. Only the first call has an effect.
func (s *Span) FinishWith(resp Response, err error) {
	s.finish(resp, err, time.Now())
}

// FinishAt closes the span with an explicit end time.
func (s *Span) FinishAt(end time.Time) {
	s.finish(nil, nil, end)
}

func (s *Span) finish(resp Response, err error, end time.Time) {
	if !s.state.CompareAndSwap(stateOpen, stateClosed) {
		return
	}

	s.mu.Lock()
	req, resolved := s.request, s.nameResolved
	s.mu.Unlock()

	t := s.tracer
	if resp != nil {
		s.tags(t.responseAnnotations(resp), end)
	}
	if !resolved && req != nil {
		name := t.spanName(req)
		s.mu.Lock()
		s.raw.Name = name
		s.mu.Unlock()
	}
	if err != nil {
		s.tags(errorAnnotations(err, s.raw.Kind), end)
	}
	switch s.raw.Kind {
	case KindServer:
		s.annotate(Annotation{Key: ServerSend, Timestamp: end})
	case KindClient:
		if err == nil {
			s.annotate(Annotation{Key: ClientRecv, Timestamp: end})
		}
	}

	s.mu.Lock()
	s.raw.Duration = end.Sub(s.raw.Start)
	raw := s.raw
	raw.Annotations = append([]Annotation(nil), s.raw.Annotations...)
	s.request = nil
	s.mu.Unlock()

	s.onFinish(raw)
	t.record(raw)
}
