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

// Package tracingfx wires an httptracing Tracer into an fx application.
package tracingfx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
)

// FXModule provides a *httptracing.Tracer and its *httptracing.Recorder
// built from the *httptracing.Config found in the container, and flushes
// the Recorder when the application stops.
//
// Usage:
//
//	app := fx.New(
//	    tracingfx.FXModule,
//	    fx.Provide(func() (*httptracing.Config, error) {
//	        return httptracing.LoadConfig("tracing.yaml")
//	    }),
//	    fx.Invoke(func(t *httptracing.Tracer) { ... }),
//	)
//
// A *zap.Logger and a prometheus.Registerer are used when provided. Extra
// tracer options can be contributed to the "httptracing.options" value
// group.
var FXModule = fx.Module("httptracing",
	fx.Provide(NewTracing),
	fx.Invoke(RegisterTracingLifecycle),
)

// Params are the dependencies of NewTracing.
type Params struct {
	fx.In

	Config     *httptracing.Config
	Logger     *zap.Logger                `optional:"true"`
	Registerer prometheus.Registerer      `optional:"true"`
	Options    []httptracing.TracerOption `group:"httptracing.options"`
}

// Result is the output of NewTracing.
type Result struct {
	fx.Out

	Tracer   *httptracing.Tracer
	Recorder *httptracing.Recorder
}

// NewTracing builds the Tracer and Recorder described by p.Config.
func NewTracing(p Params) (Result, error) {
	var opts []httptracing.RecorderOption
	if p.Registerer != nil {
		opts = append(opts, httptracing.WithRecorderMetrics(p.Registerer))
	}
	t, rec, err := httptracing.NewTracerFromConfig(p.Config, p.Logger, p.Options, opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{Tracer: t, Recorder: rec}, nil
}

// RegisterTracingLifecycle closes rec when the application stops, so queued
// spans reach the reporter before the process exits.
func RegisterTracingLifecycle(lc fx.Lifecycle, rec *httptracing.Recorder, t *httptracing.Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			t.Logger().Info("flushing span recorder")
			done := make(chan error, 1)
			go func() { done <- rec.Close() }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
