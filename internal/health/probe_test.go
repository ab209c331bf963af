package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clipper-camera/clipper-app/internal/health"
)

func TestCheckHealthyOnOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	probe := health.NewProbeWithClient(server.URL+"/health", 5*time.Second, server.Client())
	result := probe.Check(context.Background())
	if !result.Healthy {
		t.Fatalf("unhealthy: %s", result.Detail)
	}
	if result.Latency <= 0 {
		t.Fatal("latency not recorded")
	}

	last, ok := probe.Last()
	if !ok || !last.Healthy {
		t.Fatalf("Last = %+v, %v", last, ok)
	}
}

func TestCheckUnhealthyOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	probe := health.NewProbeWithClient(server.URL, 5*time.Second, server.Client())
	if result := probe.Check(context.Background()); result.Healthy {
		t.Fatal("503 reported healthy")
	}
}

func TestCheckUnhealthyOnBadBody(t *testing.T) {
	cases := map[string]string{
		"not json":     `<html>`,
		"wrong status": `{"status":"degraded"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			probe := health.NewProbeWithClient(server.URL, 5*time.Second, server.Client())
			if result := probe.Check(context.Background()); result.Healthy {
				t.Fatalf("body %q reported healthy", body)
			}
		})
	}
}

func TestCheckUnhealthyWhenUnconfigured(t *testing.T) {
	probe := health.NewProbeWithClient("", time.Second, http.DefaultClient)
	result := probe.Check(context.Background())
	if result.Healthy {
		t.Fatal("unconfigured endpoint reported healthy")
	}
	if result.Detail != "endpoint not configured" {
		t.Fatalf("detail = %q", result.Detail)
	}
}

func TestCheckTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	probe := health.NewProbeWithClient(server.URL, 50*time.Millisecond, http.DefaultClient)
	start := time.Now()
	result := probe.Check(context.Background())
	if result.Healthy {
		t.Fatal("hung endpoint reported healthy")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("probe did not honor its timeout")
	}
}
