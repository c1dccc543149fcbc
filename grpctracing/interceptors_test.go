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

package grpctracing

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/openzipkin/zipkin-go/model"
	zb3 "github.com/openzipkin/zipkin-go/propagation/b3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
)

const fullMethod = "/checkout.Cart/Get"

func newTracer(t *testing.T, opts ...httptracing.TracerOption) (*httptracing.Tracer, *httptracing.InMemoryRecorder) {
	rec := httptracing.NewInMemoryRecorder()
	tr, err := httptracing.NewTracer(rec, opts...)
	require.NoError(t, err)
	return tr, rec
}

func TestUnaryServerInterceptorJoinsTrace(t *testing.T) {
	tr, rec := newTracer(t)

	md := metadata.Pairs(
		zb3.TraceID, "000000000000000a",
		zb3.SpanID, "000000000000000b",
		zb3.Sampled, "1",
	)
	ctx := metadata.NewIncomingContext(context.Background(), md)
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 4242}})

	var inHandler *httptracing.Span
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		inHandler = httptracing.SpanFromContext(ctx)
		return "ok", nil
	}

	resp, err := UnaryServerInterceptor(tr)(ctx, "req", &grpc.UnaryServerInfo{FullMethod: fullMethod}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	require.NotNil(t, inHandler)

	spans := rec.GetSpans()
	require.Len(t, spans, 1)
	sp := spans[0]
	assert.Equal(t, fullMethod, sp.Name)
	assert.Equal(t, httptracing.KindServer, sp.Kind)
	assert.Equal(t, model.TraceID{Low: 0xa}, sp.Context.TraceID)
	assert.Equal(t, model.ID(0xb), sp.Context.ParentID)
	assert.Equal(t, inHandler.Context(), sp.Context)
	assert.Equal(t, []string{httptracing.ServerRecv, httptracing.ServerSend}, sp.Events())
	require.NotNil(t, sp.RemoteEndpoint)
	assert.Equal(t, uint16(4242), sp.RemoteEndpoint.Port)
}

func TestUnaryServerInterceptorError(t *testing.T) {
	tr, rec := newTracer(t)

	want := status.Error(codes.NotFound, "no such cart")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	}

	_, err := UnaryServerInterceptor(tr)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: fullMethod}, handler)
	assert.Equal(t, want, err)

	spans := rec.GetSpans()
	require.Len(t, spans, 1)
	tags := spans[0].Tags()
	assert.Equal(t, "NotFound", tags[StatusCodeKey])
	assert.Equal(t, want.Error(), tags[httptracing.ErrorKey])
	assert.True(t, spans[0].Context.IsRoot())
}

func TestUnaryServerInterceptorPanic(t *testing.T) {
	tr, rec := newTracer(t)

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("boom")
	}

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = UnaryServerInterceptor(tr)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: fullMethod}, handler)
	})

	spans := rec.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "panic", spans[0].Tags()[httptracing.ErrorKindKey])
}

func TestUnaryClientInterceptorInjects(t *testing.T) {
	tr, rec := newTracer(t)

	ctx, parent := tr.StartLocalSpan(context.Background(), "checkout")
	ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", "r1")

	var sent metadata.MD
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		sent, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	err := UnaryClientInterceptor(tr)(ctx, fullMethod, nil, nil, nil, invoker)
	require.NoError(t, err)
	parent.Finish()

	spans := rec.GetSpans()
	require.Len(t, spans, 2)
	client := spans[0]
	assert.Equal(t, httptracing.KindClient, client.Kind)
	assert.Equal(t, parent.Context().SpanID, client.Context.ParentID)
	assert.Equal(t, parent.Context().TraceID, client.Context.TraceID)

	assert.Equal(t, []string{"r1"}, sent.Get("x-request-id"))
	assert.Equal(t, []string{client.Context.TraceID.String()}, sent.Get(zb3.TraceID))
	assert.Equal(t, []string{client.Context.SpanID.String()}, sent.Get(zb3.SpanID))

	orig, _ := metadata.FromOutgoingContext(ctx)
	assert.Empty(t, orig.Get(zb3.TraceID))
}

func TestUnaryClientInterceptorError(t *testing.T) {
	tr, rec := newTracer(t)

	want := errors.New("connection refused")
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return want
	}

	err := UnaryClientInterceptor(tr)(context.Background(), fullMethod, nil, nil, nil, invoker)
	assert.Same(t, want, err)

	spans := rec.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "transport", spans[0].Tags()[httptracing.ErrorKindKey])
	assert.Equal(t, []string{httptracing.ClientSend}, spans[0].Events())
}

func TestUnaryClientInterceptorPanic(t *testing.T) {
	tr, rec := newTracer(t)

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		panic("codec bug")
	}

	assert.PanicsWithValue(t, "codec bug", func() {
		_ = UnaryClientInterceptor(tr)(context.Background(), fullMethod, nil, nil, nil, invoker)
	})

	spans := rec.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "panic", spans[0].Tags()[httptracing.ErrorKindKey])
	assert.Equal(t, "panic: codec bug", spans[0].Tags()[httptracing.ErrorKey])
}
