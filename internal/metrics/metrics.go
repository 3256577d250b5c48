// Package metrics exports HTTP and cache counters in Prometheus format
// through the OpenTelemetry SDK.
package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"goflare.io/kvrest/internal/models"
)

// StatsSource provides the cache counters sampled on every scrape.
type StatsSource interface {
	Stats() models.Snapshot
}

type Metrics struct {
	HTTPRequests metric.Int64Counter
	HTTPDuration metric.Float64Histogram

	provider *sdkmetric.MeterProvider
}

// Setup builds a meter provider backed by its own Prometheus registry and
// returns the handler serving it. stats may be nil.
func Setup(serviceName string, stats StatsSource) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{provider: provider}

	m.HTTPRequests, err = meter.Int64Counter(
		"kvrest_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"kvrest_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	if stats != nil {
		if err := registerCacheCounters(meter, stats); err != nil {
			return nil, nil, err
		}
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func registerCacheCounters(meter metric.Meter, stats StatsSource) error {
	hits, err := meter.Int64ObservableCounter("kvrest_cache_hits_total",
		metric.WithDescription("Total number of cache hits"))
	if err != nil {
		return err
	}
	misses, err := meter.Int64ObservableCounter("kvrest_cache_misses_total",
		metric.WithDescription("Total number of cache misses"))
	if err != nil {
		return err
	}
	localHits, err := meter.Int64ObservableCounter("kvrest_cache_local_hits_total",
		metric.WithDescription("Cache hits served from process memory"))
	if err != nil {
		return err
	}
	rejects, err := meter.Int64ObservableCounter("kvrest_cache_filter_rejects_total",
		metric.WithDescription("Reads skipped because the key filter ruled the key out"))
	if err != nil {
		return err
	}
	storeErrors, err := meter.Int64ObservableCounter("kvrest_store_errors_total",
		metric.WithDescription("Failed calls to the key-value store"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats.Stats()
		o.ObserveInt64(hits, s.Hits)
		o.ObserveInt64(misses, s.Misses)
		o.ObserveInt64(localHits, s.LocalHits)
		o.ObserveInt64(rejects, s.FilterRejects)
		o.ObserveInt64(storeErrors, s.StoreErrors)
		return nil
	}, hits, misses, localHits, rejects, storeErrors)
	return err
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
