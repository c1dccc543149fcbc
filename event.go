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

// A SpanEvent is emitted when a lifecycle transition or mutation happens on
// a Span.
type SpanEvent interface{}

// EventCreate is emitted when a Span is opened.
type EventCreate struct {
	Name string
	Kind Kind
}

// EventTag is emitted when a key/value annotation is added.
type EventTag struct {
	Key   string
	Value string
}

// EventLog is emitted when an event annotation is added.
type EventLog Annotation

// EventFinish is emitted once, when the Span is closed.
type EventFinish RawSpan

// emit delivers e to the listener of the span. Listeners see one event at a
// time, and nothing after EventFinish.
func (s *Span) emit(e SpanEvent) {
	if s.event == nil {
		return
	}
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	if s.eventsDone {
		return
	}
	if _, ok := e.(EventFinish); ok {
		s.eventsDone = true
	}
	s.event(e)
}

func (s *Span) onCreate(name string) {
	s.emit(EventCreate{Name: name, Kind: s.raw.Kind})
}

func (s *Span) onAnnotate(a Annotation) {
	if a.IsEvent() {
		s.emit(EventLog(a))
		return
	}
	s.emit(EventTag{Key: a.Key, Value: a.Value})
}

func (s *Span) onFinish(sp RawSpan) {
	s.emit(EventFinish(sp))
}
