package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"scoregate/internal/metrics"
	"scoregate/internal/upstream"
)

func newProber(t *testing.T, upstreamURL string) *Prober {
	t.Helper()
	m := metrics.New([]float64{0.1, 1}, []float64{100})
	client, err := upstream.New(upstreamURL, time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("upstream.New() error = %v", err)
	}
	return &Prober{Upstream: client, Metrics: m, Model: "creditscoring", Version: "v1"}
}

func TestProbeReachableSetsGauge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	p := newProber(t, ts.URL+"/invocations")

	res := p.Probe(context.Background())

	if !res.Reachable {
		t.Error("Reachable = false, want true (any response counts)")
	}
	if res.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", res.Code)
	}
	if got := testutil.ToFloat64(p.Metrics.UpstreamUp.WithLabelValues("creditscoring", "v1")); got != 1 {
		t.Errorf("upstream_up = %f, want 1", got)
	}
}

func TestProbeUnreachableSetsGaugeToZero(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()
	p := newProber(t, url+"/invocations")

	res := p.Probe(context.Background())

	if res.Reachable {
		t.Error("Reachable = true, want false")
	}
	if res.Detail != "connect" {
		t.Errorf("Detail = %q, want connect", res.Detail)
	}
	if got := testutil.ToFloat64(p.Metrics.UpstreamUp.WithLabelValues("creditscoring", "v1")); got != 0 {
		t.Errorf("upstream_up = %f, want 0", got)
	}
}

func TestProbeRecoversGauge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	p := newProber(t, ts.URL+"/invocations")

	p.Metrics.UpstreamUp.WithLabelValues("creditscoring", "v1").Set(0)
	res := p.Probe(context.Background())

	if !res.Reachable {
		t.Fatal("Reachable = false, want true")
	}
	if got := testutil.ToFloat64(p.Metrics.UpstreamUp.WithLabelValues("creditscoring", "v1")); got != 1 {
		t.Errorf("upstream_up = %f, want 1 after recovery", got)
	}
}
