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

// Command checkout is a small traced HTTP service. GET /cart/{id} calls the
// inventory endpoint of the same process through the traced client, so a
// single request produces a server span, a client span and a nested server
// span in one trace.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"golang.org/x/net/trace"

	httptracing "github.com/openzipkin-contrib/zipkin-go-httptracing"
	"github.com/openzipkin-contrib/zipkin-go-httptracing/events"
	"github.com/openzipkin-contrib/zipkin-go-httptracing/ot"
	"github.com/openzipkin-contrib/zipkin-go-httptracing/tracingfx"
)

func main() {
	configPath := flag.String("config", "", "tracing configuration file (YAML)")
	listen := flag.String("listen", "127.0.0.1:8080", "listen address")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %+v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	app := fx.New(
		tracingfx.FXModule,
		fx.Supply(logger),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l}
		}),
		fx.Provide(
			func() (*httptracing.Config, error) {
				cfg, err := httptracing.LoadConfig(*configPath)
				if err != nil {
					return nil, err
				}
				if cfg.ServiceName == httptracing.DefaultServiceName {
					cfg.ServiceName = "checkout"
				}
				if cfg.HostPort == "" {
					cfg.HostPort = *listen
				}
				return cfg, nil
			},
			func() *prometheus.Registry { return prometheus.NewRegistry() },
			func(r *prometheus.Registry) prometheus.Registerer { return r },
			fx.Annotate(
				func() httptracing.TracerOption {
					return httptracing.WithSpanEventListener(events.NetTraceIntegrator)
				},
				fx.ResultTags(`group:"httptracing.options"`),
			),
		),
		fx.Invoke(func(lc fx.Lifecycle, t *httptracing.Tracer, reg *prometheus.Registry) {
			srv := &http.Server{
				Addr:              *listen,
				Handler:           newMux(t, reg, "http://"+*listen),
				ReadHeaderTimeout: 5 * time.Second,
			}
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					ln, err := net.Listen("tcp", srv.Addr)
					if err != nil {
						return err
					}
					logger.Info("checkout listening", zap.String("addr", ln.Addr().String()))
					go func() {
						if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
							logger.Error("server stopped", zap.Error(err))
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
	app.Run()
}

func newMux(t *httptracing.Tracer, reg *prometheus.Registry, self string) http.Handler {
	client := httptracing.NewClient(t, &http.Client{Timeout: 2 * time.Second})
	otTracer := ot.Wrap(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, self+"/inventory/"+id, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		var stock map[string]int
		if err := json.NewDecoder(resp.Body).Decode(&stock); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		total := price(r.Context(), otTracer, stock[id])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "stock": stock[id], "total": total})
	})
	mux.HandleFunc("GET /inventory/{sku}", func(w http.ResponseWriter, r *http.Request) {
		sku := r.PathValue("sku")
		if sku == "missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{sku: len(sku)})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /debug/requests", trace.Traces)
	return httptracing.Middleware(t)(mux)
}

// price runs in an OpenTracing span that joins the request trace.
func price(ctx context.Context, tracer opentracing.Tracer, qty int) int {
	var opts []opentracing.StartSpanOption
	if parent := httptracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(ot.SpanContext(parent.Context())))
	}
	sp := tracer.StartSpan("price", opts...)
	defer sp.Finish()
	sp.SetTag("qty", qty)
	return qty * 250
}
