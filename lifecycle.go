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
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/openzipkin/zipkin-go/propagation"
	"go.uber.org/zap"
)

// StartServerSpan opens the server span of an inbound request. The trace
// context is read through extract; missing or malformed propagation data
// starts a new trace instead of failing. The span is attached to the
// returned context and must be closed with FinishWith once the response is
// final, including when the handler fails.
func (t *Tracer) StartServerSpan(ctx context.Context, req Request, extract propagation.Extractor) (context.Context, *Span) {
	inbound := t.extract(extract)
	sp := t.openRPC(KindServer, t.resolve(inbound), req)
	return ContextWithSpan(ctx, sp), sp
}

// StartClientSpan opens the client span of an outbound call and writes its
// trace context through inject. The span is a child of the active span in
// ctx, or the root of a new trace when there is none.
func (t *Tracer) StartClientSpan(ctx context.Context, req Request, inject propagation.Injector) (context.Context, *Span) {
	var parent *TraceContext
	if p := SpanFromContext(ctx); p != nil {
		pc := p.Context()
		parent = &pc
	}
	sp := t.openRPC(KindClient, t.resolve(parent), req)
	if inject != nil {
		if err := sp.Context().Inject(inject); err != nil {
			t.logger.Warn("unable to inject trace context",
				zap.Error(err),
				zap.Stringer("traceId", sp.Context().TraceID))
		}
	}
	return ContextWithSpan(ctx, sp), sp
}

// StartLocalSpan opens a span for in-process work, as a child of the active
// span in ctx when there is one.
func (t *Tracer) StartLocalSpan(ctx context.Context, name string) (context.Context, *Span) {
	var parent *TraceContext
	if p := SpanFromContext(ctx); p != nil {
		pc := p.Context()
		parent = &pc
	}
	sp := t.newSpan(name, KindLocal, t.resolve(parent), time.Now(), nil)
	return ContextWithSpan(ctx, sp), sp
}

func (t *Tracer) openRPC(kind Kind, c TraceContext, req Request) *Span {
	start := time.Now()

	name := req.Method()
	resolved := req.Route() != ""
	if resolved {
		name = t.spanName(req)
	}
	sp := t.newSpan(name, kind, c, start, req)
	sp.nameResolved = resolved

	event := ServerRecv
	if kind == KindClient {
		event = ClientSend
	}
	sp.annotate(Annotation{Key: event, Timestamp: start})
	sp.tags(t.requestAnnotations(req), start)
	return sp
}

func (t *Tracer) extract(extract propagation.Extractor) (c *TraceContext) {
	if extract == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("trace context extraction failed",
				zap.String("error", fmt.Sprint(r)))
			c = nil
		}
	}()
	c, err := extractContext(extract)
	if err != nil {
		t.headerLog.LogError(err)
		return nil
	}
	return c
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func errorAnnotations(err error, kind Kind) map[string]string {
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("%T", err)
	}
	return map[string]string{
		ErrorKey:     msg,
		ErrorKindKey: errorKind(err, kind),
	}
}

func errorKind(err error, kind Kind) string {
	var (
		pe *PanicError
		ne net.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &pe):
		if pe.Value == http.ErrAbortHandler {
			return "aborted"
		}
		return "panic"
	case errors.As(err, &ne) && ne.Timeout():
		return "timeout"
	case kind == KindClient:
		return "transport"
	}
	return "error"
}
