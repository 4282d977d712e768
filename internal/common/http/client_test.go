package http

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"content-workers/internal/common/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CountsByStatusClass(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client := NewClient("test-upstream", 0)
	ok := metrics.UpstreamRequests.WithLabelValues("test-upstream", "2xx")
	limited := metrics.UpstreamRequests.WithLabelValues("test-upstream", "429")
	okBefore, limitedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(limited)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	status.Store(http.StatusTooManyRequests)
	resp, err = client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, limitedBefore+1, testutil.ToFloat64(limited))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	failed := metrics.UpstreamRequests.WithLabelValues("closed-upstream", "error")
	before := testutil.ToFloat64(failed)

	_, err := NewClient("closed-upstream", 0).Get(url)

	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(failed))
}
