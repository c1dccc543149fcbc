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
	"fmt"
	"math/rand"
	"net/http"
	"testing"

	opentracing "github.com/opentracing/opentracing-go"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
)

var tags []string

func init() {
	tags = make([]string, 1000)
	for j := 0; j < len(tags); j++ {
		tags[j] = fmt.Sprintf("%d", rand.Uint64())
	}
}

type countingRecorder int

func (c *countingRecorder) RecordSpan(httptracing.RawSpan) { *c++ }

func executeOps(sp opentracing.Span, numEvent, numTag int) {
	for j := 0; j < numEvent; j++ {
		sp.LogEvent("event")
	}
	for j := 0; j < numTag; j++ {
		sp.SetTag(tags[j], tags[j])
	}
}

func benchmarkWithOps(b *testing.B, numEvent, numTag int) {
	var r countingRecorder
	t := newTracer(b, &r)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sp := t.StartSpan("test")
		executeOps(sp, numEvent, numTag)
		sp.Finish()
	}
	b.StopTimer()
	if int(r) != b.N {
		b.Fatalf("missing traces: expected %d, got %d", b.N, r)
	}
}

func BenchmarkSpan_Empty(b *testing.B) {
	benchmarkWithOps(b, 0, 0)
}

func BenchmarkSpan_100Events(b *testing.B) {
	benchmarkWithOps(b, 100, 0)
}

func BenchmarkSpan_100Tags(b *testing.B) {
	benchmarkWithOps(b, 0, 100)
}

func BenchmarkInject_HTTPHeaders(b *testing.B) {
	tracer := newTracer(b, httptracing.NopRecorder{})
	sp := tracer.StartSpan("testing")
	carrier := opentracing.HTTPHeadersCarrier(http.Header{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tracer.Inject(sp.Context(), opentracing.HTTPHeaders, carrier); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExtract_HTTPHeaders(b *testing.B) {
	tracer := newTracer(b, httptracing.NopRecorder{})
	sp := tracer.StartSpan("testing")
	carrier := opentracing.HTTPHeadersCarrier(http.Header{})
	if err := tracer.Inject(sp.Context(), opentracing.HTTPHeaders, carrier); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tracer.Extract(opentracing.HTTPHeaders, carrier); err != nil {
			b.Fatal(err)
		}
	}
}
