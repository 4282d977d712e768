// internal/common/http/client.go
package http

import (
	"net/http"
	"time"

	"content-workers/internal/common/metrics"
)

// NewClient returns an http.Client whose requests are counted under service. Leave timeout at zero when
// callers bound requests with a context.
func NewClient(service string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(service, nil),
	}
}

// NewTransport wraps base (http.DefaultTransport when nil) with the upstream_* series.
func NewTransport(service string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{service: service, base: base}
}

type transport struct {
	service string
	base    http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	metrics.UpstreamDuration.WithLabelValues(t.service).Observe(time.Since(start).Seconds())

	metrics.UpstreamRequests.WithLabelValues(t.service, statusClass(resp, err)).Inc()
	return resp, err
}

func statusClass(resp *http.Response, err error) string {
	if err != nil {
		return "error"
	}
	switch {
	case resp.StatusCode >= 500:
		return "5xx"
	case resp.StatusCode == http.StatusTooManyRequests:
		return "429"
	case resp.StatusCode >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
