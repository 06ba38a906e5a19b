package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediabatch/internal/metrics"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/transcribe":             "/transcribe",
		"/transcribe/":            "/transcribe/",
		"/transcribe/abc":         "/transcribe/{id}",
		"/transcribe/abc/results": "/transcribe/{id}/results",
		"/usage/burn-rate":        "/usage/burn-rate",
	}
	for in, want := range cases {
		if got := metrics.NormalizePath(in); got != want {
			t.Fatalf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareExportsRequestCounters(t *testing.T) {
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/transcribe/job-1", nil))

	metrics.InferenceRecorded("gemini-test", 10, 5)
	metrics.UsageObserved(3, 0.2, 0)

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, fragment := range []string{
		`mediabatch_http_requests_total{method="GET",path="/transcribe/{id}",status="418"}`,
		`mediabatch_inference_requests_total{model="gemini-test"}`,
		`mediabatch_usage_requests_today 3`,
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in exposition", fragment)
		}
	}
}
