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
	"net/http"
	"strings"
)

// Request is the read-only view of a traced request handed to the
// lifecycles and their plugins. Route returns the matched route template,
// or "" while it is not known.
type Request interface {
	Method() string
	Path() string
	Route() string
	Header(key string) string
}

// Response is the read-only view of a response or call result.
type Response interface {
	StatusCode() int
	Header(key string) string
}

// RouteFunc returns the route template matched for r, or "".
type RouteFunc func(r *http.Request) string

// PatternRoute returns the path part of the net/http.ServeMux pattern that
// matched r. The pattern is only set once the mux has dispatched r.
func PatternRoute(r *http.Request) string {
	p := r.Pattern
	if i := strings.IndexByte(p, ' '); i >= 0 {
		p = strings.TrimLeft(p[i+1:], " \t")
	}
	if i := strings.IndexByte(p, '/'); i > 0 {
		p = p[i:]
	}
	return p
}

type httpRequest struct {
	r     *http.Request
	route RouteFunc
}

// HTTPRequest adapts r to a Request. A nil route falls back to PatternRoute.
func HTTPRequest(r *http.Request, route RouteFunc) Request {
	return newHTTPRequest(r, route)
}

func newHTTPRequest(r *http.Request, route RouteFunc) *httpRequest {
	if route == nil {
		route = PatternRoute
	}
	return &httpRequest{r: r, route: route}
}

func (h *httpRequest) Method() string { return h.r.Method }

func (h *httpRequest) Path() string {
	if h.r.URL == nil {
		return ""
	}
	return h.r.URL.Path
}

func (h *httpRequest) Route() string { return h.route(h.r) }

func (h *httpRequest) Header(key string) string { return h.r.Header.Get(key) }

type httpResponse struct {
	code   int
	header http.Header
}

// HTTPResponse adapts a status code and header set to a Response.
func HTTPResponse(code int, header http.Header) Response {
	return httpResponse{code: code, header: header}
}

func (h httpResponse) StatusCode() int { return h.code }

func (h httpResponse) Header(key string) string { return h.header.Get(key) }
