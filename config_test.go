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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openzipkin/zipkin-go/reporter"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	logreporter "github.com/openzipkin/zipkin-go/reporter/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
service_name: checkout
host_port: 10.0.0.5:8080
sample_rate: 0.5
b3_style: single
reporter_url: http://zipkin:9411/api/v2/spans
batch_interval: 250ms
`)
	t.Setenv("ZIPKIN_SAMPLE_RATE", "0.25")
	t.Setenv("ZIPKIN_TRACE_ID_128BIT", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "checkout", cfg.ServiceName)
	assert.Equal(t, "10.0.0.5:8080", cfg.HostPort)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.True(t, cfg.TraceID128Bit)
	assert.Equal(t, B3StyleSingle, cfg.B3Style)
	assert.Equal(t, ReporterHTTP, cfg.Reporter)
	assert.Equal(t, 250*time.Millisecond, cfg.BatchInterval)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "sample_rate: [1"))
	assert.Error(t, err)

	t.Setenv("ZIPKIN_QUEUE_SIZE", "many")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(c *Config){
		"sample rate above one": func(c *Config) { c.SampleRate = 1.5 },
		"negative sample rate":  func(c *Config) { c.SampleRate = -0.1 },
		"unknown b3 style":      func(c *Config) { c.B3Style = "uber" },
		"unknown reporter":      func(c *Config) { c.Reporter = "kafka" },
		"http reporter no url":  func(c *Config) { c.Reporter = ReporterHTTP },
		"negative queue size":   func(c *Config) { c.QueueSize = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigSampler(t *testing.T) {
	cfg := DefaultConfig()
	s, err := cfg.Sampler()
	require.NoError(t, err)
	assert.True(t, s.Sample(TraceContext{}))

	cfg.SampleRate = 0
	s, err = cfg.Sampler()
	require.NoError(t, err)
	assert.False(t, s.Sample(TraceContext{}))

	cfg.SampleRate = 0.5
	s, err = cfg.Sampler()
	require.NoError(t, err)
	n := 0
	for i := 0; i < 100; i++ {
		if s.Sample(TraceContext{}) {
			n++
		}
	}
	assert.Equal(t, 50, n)
}

func TestConfigNewReporter(t *testing.T) {
	httpRep := zipkinhttp.NewReporter("http://127.0.0.1:9411/api/v2/spans")
	defer httpRep.Close()

	for kind, want := range map[string]reporter.Reporter{
		ReporterNone: reporter.NewNoopReporter(),
		ReporterLog:  logreporter.NewReporter(nil),
		ReporterHTTP: httpRep,
	} {
		cfg := DefaultConfig()
		cfg.Reporter = kind
		cfg.ReporterURL = "http://127.0.0.1:9411/api/v2/spans"
		rep := cfg.NewReporter(zap.NewNop())
		assert.IsType(t, want, rep, kind)
		assert.NoError(t, rep.Close())
	}
}

func TestNewTracerFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "checkout"
	cfg.HostPort = "10.0.0.5:8080"
	cfg.B3Style = B3StyleBoth
	cfg.TraceID128Bit = true

	logger, _ := newObservedLogger()
	tr, rec, err := NewTracerFromConfig(&cfg, logger, []TracerOption{WithSampler(NeverSample)})
	require.NoError(t, err)
	defer rec.Close()

	assert.Equal(t, B3InjectBoth, tr.B3InjectOption())
	assert.Len(t, tr.B3InjectOptions(), 1)
	assert.Same(t, logger, tr.Logger())

	sp := tr.StartSpan("warmup")
	assert.NotZero(t, sp.Context().TraceID.High)
	assert.Equal(t, No, sp.Context().Sampled)
	sp.Finish()

	cfg.HostPort = "no-port"
	_, _, err = NewTracerFromConfig(&cfg, nil, nil)
	assert.Error(t, err)
}
