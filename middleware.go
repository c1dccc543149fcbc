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
	"bufio"
	"fmt"
	"net"
	"net/http"

	"github.com/openzipkin/zipkin-go/propagation/b3"
	"go.uber.org/zap"
)

// ServerOption configures the tracing middleware.
type ServerOption func(h *handler)

// ServerRoute sets how the matched route template is read from a request.
// The default reads the net/http.ServeMux pattern.
func ServerRoute(fn RouteFunc) ServerOption {
	return func(h *handler) {
		h.route = fn
	}
}

type handler struct {
	tracer *Tracer
	next   http.Handler
	route  RouteFunc
}

// Middleware returns an http.Handler decorator that runs every request
// inside a server span. The span is closed once the wrapped handler
// returns, panics or the client goes away; panics are re-raised unchanged.
func Middleware(t *Tracer, options ...ServerOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := &handler{tracer: t, next: next}
		for _, option := range options {
			option(h)
		}
		return h
	}
}

// ServeHTTP implements http.Handler.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := newHTTPRequest(r, h.route)
	ctx, sp := h.tracer.StartServerSpan(r.Context(), req, b3.ExtractHTTP(r))
	if e := peerEndpointFromHostPort(r.RemoteAddr); e != nil {
		sp.SetRemoteEndpoint(e)
	}
	r = r.WithContext(ctx)
	// the mux records the matched pattern on the request it receives.
	req.r = r
	rw := &responseRecorder{ResponseWriter: w}

	defer func() {
		if v := recover(); v != nil {
			sp.FinishWith(rw.response(), &PanicError{Value: v})
			panic(v)
		}
		var err error
		if !rw.wroteHeader {
			err = ctx.Err()
		}
		sp.FinishWith(rw.response(), err)
	}()

	h.next.ServeHTTP(rw, r)
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		if !rw.wroteHeader {
			rw.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// Hijack hands the connection over to the handler. The span then closes
// without a status code.
func (rw *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, brw, err := h.Hijack()
	if err == nil {
		rw.wroteHeader = true
	}
	return conn, brw, err
}

func (rw *responseRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := rw.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseRecorder) response() Response {
	return HTTPResponse(rw.status, rw.Header())
}

// Transport is an http.RoundTripper that runs every outbound call inside a
// client span and propagates its trace context in B3 headers.
type Transport struct {
	tracer   *Tracer
	base     http.RoundTripper
	request  []ClientRequestInterceptor
	response []ClientResponseInterceptor
}

// ClientRequestInterceptor sees every outbound request after the trace
// context has been injected and before it is sent. It may add headers to r
// or tags to sp.
type ClientRequestInterceptor func(r *http.Request, sp *Span)

// ClientResponseInterceptor sees every response of a successful round trip
// before the client span closes. It must not consume the body.
type ClientResponseInterceptor func(resp *http.Response, sp *Span)

// TransportOption configures a Transport.
type TransportOption func(t *Transport)

// WithClientRequestInterceptors appends request interceptors, run in order.
func WithClientRequestInterceptors(fns ...ClientRequestInterceptor) TransportOption {
	return func(t *Transport) {
		t.request = append(t.request, fns...)
	}
}

// WithClientResponseInterceptors appends response interceptors, run in
// order.
func WithClientResponseInterceptors(fns ...ClientResponseInterceptor) TransportOption {
	return func(t *Transport) {
		t.response = append(t.response, fns...)
	}
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(t *Tracer, base http.RoundTripper, options ...TransportOption) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	tr := &Transport{tracer: t, base: base}
	for _, option := range options {
		option(tr)
	}
	return tr
}

// RoundTrip implements http.RoundTripper. The caller's request is not
// modified; headers are injected into a clone. A panicking base transport
// closes the span with the panic before it is re-raised.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	out := r.Clone(r.Context())
	_, sp := t.tracer.StartClientSpan(
		r.Context(),
		newHTTPRequest(out, nil),
		b3.InjectHTTP(out, t.tracer.B3InjectOptions()...),
	)
	if e := peerEndpointFromHostPort(out.URL.Host); e != nil {
		sp.SetRemoteEndpoint(e)
	}
	defer func() {
		if v := recover(); v != nil {
			sp.FinishWith(nil, &PanicError{Value: v})
			panic(v)
		}
	}()

	for _, fn := range t.request {
		t.intercept("client request interceptor failed", func() { fn(out, sp) })
	}
	resp, err := t.base.RoundTrip(out)
	if err != nil {
		sp.FinishWith(nil, err)
		return nil, err
	}
	for _, fn := range t.response {
		t.intercept("client response interceptor failed", func() { fn(resp, sp) })
	}
	sp.FinishWith(HTTPResponse(resp.StatusCode, resp.Header), nil)
	return resp, nil
}

func (t *Transport) intercept(msg string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.tracer.logger.Warn(msg, zap.String("error", fmt.Sprint(r)))
		}
	}()
	fn()
}

// NewClient returns a copy of client whose transport is traced. A nil
// client copies http.DefaultClient.
func NewClient(t *Tracer, client *http.Client, options ...TransportOption) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.Transport = NewTransport(t, client.Transport, options...)
	return &c
}
