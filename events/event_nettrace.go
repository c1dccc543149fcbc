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

// Package events bridges span events to other in-process observers.
package events

import (
	"golang.org/x/net/trace"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
)

// Family is the net/trace family spans are registered under.
const Family = "tracing"

// NetTraceIntegrator can be passed into httptracing.WithSpanEventListener
// and causes all spans to be registered with the net/trace endpoint.
// Failed spans are marked as errors.
var NetTraceIntegrator = func() func(httptracing.SpanEvent) {
	var tr trace.Trace
	return func(e httptracing.SpanEvent) {
		if _, ok := e.(httptracing.EventCreate); !ok && tr == nil {
			return
		}
		switch t := e.(type) {
		case httptracing.EventCreate:
			tr = trace.New(Family, t.Name)
			tr.LazyPrintf("%s span", t.Kind)
		case httptracing.EventTag:
			tr.LazyPrintf("%s=%s", t.Key, t.Value)
			if t.Key == httptracing.ErrorKey {
				tr.SetError()
			}
		case httptracing.EventLog:
			tr.LazyPrintf("%s", t.Key)
		case httptracing.EventFinish:
			tr.SetTraceInfo(t.Context.TraceID.Low, uint64(t.Context.SpanID))
			tr.LazyPrintf("finished as %q", t.Name)
			tr.Finish()
			tr = nil
		}
	}
}
