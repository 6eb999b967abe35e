// Package metrics exposes Prometheus collectors for the crawler's HTTP
// traffic: outbound fetches, politeness delays and the control API.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/gallery-crawler/internal/crawl"
)

// Metrics holds the collectors registered against one registry.
type Metrics struct {
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
}

// New registers the collectors against reg, or the default registerer when
// reg is nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallery_fetches_total",
				Help: "Total number of GET requests issued, labeled by site and status.",
			},
			[]string{"site", "status"},
		),
		fetchBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallery_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		),
		fetchDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gallery_fetch_duration_seconds",
				Help:    "Histogram of GET latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of control API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of control API latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		),
		rateLimitDelaysSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gallery_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		),
	}
	for _, collector := range []prometheus.Collector{
		m.fetchesTotal,
		m.fetchBytesTotal,
		m.fetchDurationSeconds,
		m.httpRequestsTotal,
		m.httpRequestDurationSeconds,
		m.rateLimitDelaysSeconds,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register metrics collector: %w", err)
		}
	}
	return m, nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one GET. status is "error" for transport failures.
func (m *Metrics) ObserveFetch(rawURL, status string, bytesFetched int, duration time.Duration) {
	site := SanitizeSite(rawURL)
	m.fetchesTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		m.fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	m.fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the control API request metrics.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait. Its
// signature matches ratelimit.DelayObserver.
func (m *Metrics) ObserveRateLimitDelay(domain string, duration time.Duration) {
	m.rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// InstrumentClient wraps next so every GET is observed.
func (m *Metrics) InstrumentClient(next crawl.Client) crawl.Client {
	return &instrumentedClient{next: next, metrics: m}
}

type instrumentedClient struct {
	next    crawl.Client
	metrics *Metrics
}

func (c *instrumentedClient) Get(ctx context.Context, rawURL string) (crawl.Response, error) {
	start := time.Now()
	resp, err := c.next.Get(ctx, rawURL)
	if err != nil {
		c.metrics.ObserveFetch(rawURL, "error", 0, time.Since(start))
		return resp, err //nolint:wrapcheck
	}
	c.metrics.ObserveFetch(rawURL, strconv.Itoa(resp.StatusCode), len(resp.Body), time.Since(start))
	return resp, nil
}
