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

package tracingfx_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
	"github.com/openzipkin-contrib/zipkin-go-httptracing/tracingfx"
)

func testConfig() *httptracing.Config {
	cfg := httptracing.DefaultConfig()
	cfg.ServiceName = "fx-test"
	return &cfg
}

func TestFXModule_ProvidesTracer(t *testing.T) {
	var tracer *httptracing.Tracer

	app := fxtest.New(t,
		tracingfx.FXModule,
		fx.Provide(testConfig),
		fx.Populate(&tracer),
	)

	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, tracer)
	_, sp := tracer.StartLocalSpan(context.Background(), "x")
	assert.True(t, sp.Reporting())
	sp.Finish()
}

func TestFXModule_FlushesOnStop(t *testing.T) {
	reg := prometheus.NewRegistry()
	var tracer *httptracing.Tracer

	app := fxtest.New(t,
		tracingfx.FXModule,
		fx.Provide(testConfig),
		fx.Provide(func() *zap.Logger { return zaptest.NewLogger(t) }),
		fx.Provide(func() prometheus.Registerer { return reg }),
		fx.Populate(&tracer),
	)
	app.RequireStart()

	_, sp := tracer.StartLocalSpan(context.Background(), "before-stop")
	sp.Finish()
	app.RequireStop()

	count, err := testutil.GatherAndCount(reg, "zipkin_recorder_spans_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP zipkin_recorder_spans_sent_total Spans handed to the zipkin reporter.
# TYPE zipkin_recorder_spans_sent_total counter
zipkin_recorder_spans_sent_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "zipkin_recorder_spans_sent_total"))
}

func TestFXModule_InvalidConfig(t *testing.T) {
	app := fx.New(
		tracingfx.FXModule,
		fx.Provide(func() *httptracing.Config {
			cfg := testConfig()
			cfg.SampleRate = 2
			return cfg
		}),
		fx.Invoke(func(*httptracing.Tracer) {}),
		fx.NopLogger,
	)
	assert.Error(t, app.Err())
}
