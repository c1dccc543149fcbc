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

// Package grpctracing traces unary gRPC calls with the span lifecycles of
// httptracing, propagating B3 trace context in gRPC metadata.
package grpctracing

import (
	"context"

	"github.com/openzipkin/zipkin-go/propagation/b3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
)

// StatusCodeKey is the tag holding the gRPC status of a failed call.
const StatusCodeKey = "grpc.status_code"

// rpcRequest exposes a gRPC call to the span namer and extractors. The full
// method name is both its path and its route.
type rpcRequest struct {
	method string
	md     metadata.MD
}

func (r rpcRequest) Method() string { return "" }

func (r rpcRequest) Path() string { return r.method }

func (r rpcRequest) Route() string { return r.method }

func (r rpcRequest) Header(key string) string {
	if v := r.md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// rpcResponse reports the numeric gRPC status code as its status code.
type rpcResponse struct {
	code codes.Code
}

func (r rpcResponse) StatusCode() int { return int(r.code) }

func (r rpcResponse) Header(string) string { return "" }

// UnaryServerInterceptor opens a server span for every unary call, as a
// child of the trace context found in the incoming metadata.
func UnaryServerInterceptor(t *httptracing.Tracer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		md, _ := metadata.FromIncomingContext(ctx)
		ctx, sp := t.StartServerSpan(ctx, rpcRequest{method: info.FullMethod, md: md}, b3.ExtractGRPC(&md))
		if p, ok := peer.FromContext(ctx); ok {
			if e := httptracing.PeerEndpoint(p.Addr); e != nil {
				sp.SetRemoteEndpoint(e)
			}
		}

		defer func() {
			if v := recover(); v != nil {
				sp.FinishWith(rpcResponse{code: codes.Internal}, &httptracing.PanicError{Value: v})
				panic(v)
			}
		}()

		resp, err = handler(ctx, req)
		finish(sp, err)
		return resp, err
	}
}

// UnaryClientInterceptor opens a client span for every unary call and
// writes its trace context to the outgoing metadata. The metadata of the
// caller's context is not modified.
func UnaryClientInterceptor(t *httptracing.Tracer) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			md = md.Copy()
		} else {
			md = metadata.MD{}
		}
		ctx, sp := t.StartClientSpan(ctx, rpcRequest{method: method, md: md}, b3.InjectGRPC(&md))
		ctx = metadata.NewOutgoingContext(ctx, md)
		defer func() {
			if v := recover(); v != nil {
				sp.FinishWith(rpcResponse{code: codes.Internal}, &httptracing.PanicError{Value: v})
				panic(v)
			}
		}()

		err := invoker(ctx, method, req, reply, cc, opts...)
		finish(sp, err)
		return err
	}
}

func finish(sp *httptracing.Span, err error) {
	code := status.Code(err)
	if err != nil {
		sp.Tag(StatusCodeKey, code.String())
	}
	sp.FinishWith(rpcResponse{code: code}, err)
}
