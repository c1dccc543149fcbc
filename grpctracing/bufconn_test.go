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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
)

func TestInterceptorsOverConnection(t *testing.T) {
	tr, rec := newTracer(t)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryServerInterceptor(tr)))
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(UnaryClientInterceptor(tr)),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, parent := tr.StartLocalSpan(context.Background(), "health-probe")
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
	parent.Finish()

	spans := rec.GetSpans()
	require.Len(t, spans, 3)
	byKind := map[httptracing.Kind]httptracing.RawSpan{}
	for _, sp := range spans {
		byKind[sp.Kind] = sp
	}
	server, client, local := byKind[httptracing.KindServer], byKind[httptracing.KindClient], byKind[httptracing.KindLocal]

	const method = "/grpc.health.v1.Health/Check"
	assert.Equal(t, method, server.Name)
	assert.Equal(t, method, client.Name)
	assert.Equal(t, local.Context.TraceID, client.Context.TraceID)
	assert.Equal(t, local.Context.SpanID, client.Context.ParentID)
	assert.Equal(t, client.Context.TraceID, server.Context.TraceID)
	assert.Equal(t, client.Context.SpanID, server.Context.ParentID)
	assert.Empty(t, server.Tags()[StatusCodeKey])
}
