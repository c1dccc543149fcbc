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
	"fmt"

	"go.uber.org/zap"
)

// SpanNamer derives a span name from a request. Implementations must only
// read from the request.
type SpanNamer interface {
	SpanName(req Request) string
}

// SpanNamerFunc adapts an ordinary function to a SpanNamer.
type SpanNamerFunc func(req Request) string

// SpanName implements SpanNamer.
func (f SpanNamerFunc) SpanName(req Request) string {
	return f(req)
}

// DefaultSpanNamer names spans "<method> <route-template>", or just the
// method when no route was matched.
var DefaultSpanNamer SpanNamer = SpanNamerFunc(defaultSpanName)

func defaultSpanName(req Request) string {
	method, route := req.Method(), req.Route()
	switch {
	case route == "":
		return method
	case method == "":
		return route
	}
	return method + " " + route
}

// spanName calls the configured SpanNamer, falling back to the default name
// when it panics or returns nothing.
func (t *Tracer) spanName(req Request) (name string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("span namer failed",
				zap.String("error", fmt.Sprint(r)))
			name = defaultSpanName(req)
		}
	}()
	if name = t.opts.spanNamer.SpanName(req); name == "" {
		name = defaultSpanName(req)
	}
	return name
}
