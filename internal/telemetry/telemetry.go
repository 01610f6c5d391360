// Package telemetry exports controller metrics through OpenTelemetry and Prometheus.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pandagg110/speach-recognition/internal/fallback"
	"github.com/pandagg110/speach-recognition/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "github.com/pandagg110/speach-recognition/internal/telemetry"

// Telemetry owns the meter provider, the Prometheus handler, and the session recorder.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	recorder *Recorder
}

// Setup builds a meter provider backed by a private Prometheus registry.
func Setup(ctx context.Context, logger *slog.Logger) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("speach"),
			semconv.ServiceVersion(version.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("initialize prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	recorder, err := NewRecorder(provider)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	logger.Info("telemetry initialized", slog.String("exporter", "prometheus"))
	return &Telemetry{
		provider: provider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		recorder: recorder,
	}, nil
}

// Recorder returns the session observer feeding the meters.
func (t *Telemetry) Recorder() *Recorder {
	return t.recorder
}

// Handler serves the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return t.handler
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// Serve exposes /metrics on bind until ctx is cancelled. An empty bind disables it.
func (t *Telemetry) Serve(ctx context.Context, bind string, logger *slog.Logger) error {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil
	}

	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen for metrics on %q: %w", bind, err)
	}
	return t.serve(ctx, listener, logger)
}

func (t *Telemetry) serve(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", slog.String("addr", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}

func categoryAttr(category string) attribute.KeyValue {
	return attribute.String("category", category)
}

func intentAttr(intent fallback.Intent) attribute.KeyValue {
	return attribute.String("intent", string(intent))
}
