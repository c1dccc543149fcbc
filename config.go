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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/openzipkin/zipkin-go/reporter"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	logreporter "github.com/openzipkin/zipkin-go/reporter/log"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables read by LoadConfig,
// e.g. ZIPKIN_SERVICE_NAME.
const EnvPrefix = "ZIPKIN"

// Reporter kinds accepted by Config.Reporter.
const (
	ReporterNone = "none"
	ReporterHTTP = "http"
	ReporterLog  = "log"
)

// B3 header styles accepted by Config.B3Style.
const (
	B3StyleMulti  = "multi"
	B3StyleSingle = "single"
	B3StyleBoth   = "both"
)

// Config describes a Tracer and its reporting pipeline in a form that can be
// read from a YAML file and overridden from the environment.
type Config struct {
	ServiceName   string        `yaml:"service_name" envconfig:"SERVICE_NAME"`
	HostPort      string        `yaml:"host_port" envconfig:"HOST_PORT"`
	SampleRate    float64       `yaml:"sample_rate" envconfig:"SAMPLE_RATE"`
	TraceID128Bit bool          `yaml:"trace_id_128bit" envconfig:"TRACE_ID_128BIT"`
	B3Style       string        `yaml:"b3_style" envconfig:"B3_STYLE"`
	Reporter      string        `yaml:"reporter" envconfig:"REPORTER"`
	ReporterURL   string        `yaml:"reporter_url" envconfig:"REPORTER_URL"`
	BatchSize     int           `yaml:"batch_size" envconfig:"BATCH_SIZE"`
	BatchInterval time.Duration `yaml:"batch_interval" envconfig:"BATCH_INTERVAL"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	QueueSize     int           `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
}

// DefaultConfig returns the configuration used for settings absent from
// both the file and the environment.
func DefaultConfig() Config {
	return Config{
		ServiceName:   DefaultServiceName,
		SampleRate:    1,
		B3Style:       B3StyleMulti,
		Reporter:      ReporterNone,
		BatchSize:     100,
		BatchInterval: time.Second,
		Timeout:       5 * time.Second,
		QueueSize:     defaultQueueSize,
	}
}

// LoadConfig reads the YAML file at path, when path is not empty, on top of
// DefaultConfig and then applies ZIPKIN_* environment overrides. An empty
// Reporter becomes "http" when a ReporterURL is set.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tracing config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse tracing config %q: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("tracing config environment: %w", err)
	}
	if (cfg.Reporter == "" || cfg.Reporter == ReporterNone) && cfg.ReporterURL != "" {
		cfg.Reporter = ReporterHTTP
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample_rate %v out of range [0,1]", c.SampleRate)
	}
	if _, err := c.b3InjectOption(); err != nil {
		return err
	}
	switch strings.ToLower(c.Reporter) {
	case "", ReporterNone, ReporterLog:
	case ReporterHTTP:
		if c.ReporterURL == "" {
			return errors.New("reporter_url required for the http reporter")
		}
	default:
		return fmt.Errorf("unknown reporter %q", c.Reporter)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size %d must not be negative", c.QueueSize)
	}
	return nil
}

func (c *Config) b3InjectOption() (B3InjectOption, error) {
	switch strings.ToLower(c.B3Style) {
	case "", B3StyleMulti:
		return B3InjectStandard, nil
	case B3StyleSingle:
		return B3InjectSingle, nil
	case B3StyleBoth:
		return B3InjectBoth, nil
	}
	return 0, fmt.Errorf("unknown b3_style %q", c.B3Style)
}

// Sampler returns the sampling policy for SampleRate.
func (c *Config) Sampler() (SamplingPolicy, error) {
	switch c.SampleRate {
	case 1:
		return AlwaysSample, nil
	case 0:
		return NeverSample, nil
	}
	return NewCountingSampler(c.SampleRate)
}

// NewReporter builds the zipkin-go reporter selected by c. The http and log
// reporters write their own failures to logger.
func (c *Config) NewReporter(logger *zap.Logger) reporter.Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	stdLog := zap.NewStdLog(logger.Named("zipkin"))
	switch strings.ToLower(c.Reporter) {
	case ReporterHTTP:
		opts := []zipkinhttp.ReporterOption{zipkinhttp.Logger(stdLog)}
		if c.BatchSize > 0 {
			opts = append(opts, zipkinhttp.BatchSize(c.BatchSize))
		}
		if c.BatchInterval > 0 {
			opts = append(opts, zipkinhttp.BatchInterval(c.BatchInterval))
		}
		if c.Timeout > 0 {
			opts = append(opts, zipkinhttp.Timeout(c.Timeout))
		}
		if c.QueueSize > 0 {
			opts = append(opts, zipkinhttp.MaxBacklog(c.QueueSize))
		}
		return zipkinhttp.NewReporter(c.ReporterURL, opts...)
	case ReporterLog:
		return logreporter.NewReporter(stdLog)
	}
	return reporter.NewNoopReporter()
}

// TracerOptions translates c into options for NewTracer.
func (c *Config) TracerOptions(logger *zap.Logger) ([]TracerOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	sampler, err := c.Sampler()
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}
	endpoint, err := NewEndpoint(c.ServiceName, c.HostPort)
	if err != nil {
		return nil, fmt.Errorf("local endpoint: %w", err)
	}
	b3Opt, _ := c.b3InjectOption()
	opts := []TracerOption{
		WithSampler(sampler),
		WithLocalEndpoint(endpoint),
		WithTraceID128Bit(c.TraceID128Bit),
		WithB3InjectOption(b3Opt),
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return opts, nil
}

// NewTracerFromConfig builds the reporting pipeline and Tracer described by
// c. tracerOpts are applied after the options derived from c. The returned
// Recorder must be closed on shutdown to flush queued spans.
func NewTracerFromConfig(c *Config, logger *zap.Logger, tracerOpts []TracerOption, recorderOpts ...RecorderOption) (*Tracer, *Recorder, error) {
	opts, err := c.TracerOptions(logger)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, tracerOpts...)
	if logger != nil {
		recorderOpts = append([]RecorderOption{RecorderLogger(logger)}, recorderOpts...)
	}
	if c.QueueSize > 0 {
		recorderOpts = append(recorderOpts, RecorderQueueSize(c.QueueSize))
	}
	rec := NewRecorder(c.NewReporter(logger), recorderOpts...)
	t, err := NewTracer(rec, opts...)
	if err != nil {
		_ = rec.Close()
		return nil, nil, err
	}
	return t, rec, nil
}
