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
	"sort"
	"strconv"

	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"
)

// RequestAnnotationExtractor derives extra tags from an inbound or outbound
// request. It must not modify the request.
type RequestAnnotationExtractor func(req Request) map[string]string

// ResponseAnnotationExtractor derives extra tags from a response. It must
// not modify the response.
type ResponseAnnotationExtractor func(resp Response) map[string]string

// NoRequestAnnotations is the default RequestAnnotationExtractor.
func NoRequestAnnotations(Request) map[string]string { return nil }

// NoResponseAnnotations is the default ResponseAnnotationExtractor.
func NoResponseAnnotations(Response) map[string]string { return nil }

// StandardRequestAnnotations tags the request method and path using the
// OpenTracing key names.
func StandardRequestAnnotations(req Request) map[string]string {
	return map[string]string{
		string(ext.HTTPMethod): req.Method(),
		string(ext.HTTPUrl):    req.Path(),
	}
}

// StandardResponseAnnotations tags the response status code.
func StandardResponseAnnotations(resp Response) map[string]string {
	code := resp.StatusCode()
	if code == 0 {
		return nil
	}
	return map[string]string{
		string(ext.HTTPStatusCode): strconv.Itoa(code),
	}
}

func (t *Tracer) requestAnnotations(req Request) (tags map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("request annotation extractor failed",
				zap.String("error", fmt.Sprint(r)))
			tags = nil
		}
	}()
	return t.opts.requestAnnotations(req)
}

func (t *Tracer) responseAnnotations(resp Response) (tags map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("response annotation extractor failed",
				zap.String("error", fmt.Sprint(r)))
			tags = nil
		}
	}()
	return t.opts.responseAnnotations(resp)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
