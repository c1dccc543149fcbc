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

/*
Package httptracing adds Zipkin tracing to HTTP services.

A Tracer opens one span per inbound request (StartServerSpan) and one per
outbound call (StartClientSpan), joins the trace described by incoming B3
headers and writes B3 headers on outgoing calls. Middleware, Transport and
NewClient wire these lifecycles into net/http. Finished spans go to a
SpanRecorder; Recorder forwards them to a zipkin-go reporter without ever
blocking the request path.

Tracing failures never fail the traced request: malformed headers start a
new trace, and panics from samplers, namers, extractors and recorders are
logged and contained.
*/
package httptracing
