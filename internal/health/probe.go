package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clipper-camera/clipper-app/internal/config"
)

// Result is the outcome of one endpoint health check.
type Result struct {
	Healthy   bool
	Latency   time.Duration
	Detail    string
	CheckedAt time.Time
}

// Probe reports whether the remote endpoint is reachable.
type Probe interface {
	Check(ctx context.Context) Result
	Last() (Result, bool)
}

// HTTPDoer describes the HTTP client used by the probe.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpProbe struct {
	url     string
	timeout time.Duration
	client  HTTPDoer

	mu   sync.Mutex
	last *Result
}

// NewProbe builds an HTTP health probe from endpoint configuration. When no
// endpoint is configured the probe always reports unhealthy.
func NewProbe(cfg *config.Config) Probe {
	timeout := time.Duration(cfg.Endpoint.HealthTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var url string
	if cfg.EndpointConfigured() {
		url = cfg.Endpoint.BaseURL + cfg.Endpoint.HealthPath
	}
	return &httpProbe{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewProbeWithClient builds a probe over an injected HTTP client (used in tests).
func NewProbeWithClient(url string, timeout time.Duration, client HTTPDoer) Probe {
	return &httpProbe{url: url, timeout: timeout, client: client}
}

type healthBody struct {
	Status string `json:"status"`
}

func (p *httpProbe) Check(ctx context.Context) Result {
	result := Result{CheckedAt: time.Now().UTC()}
	defer func() {
		p.mu.Lock()
		cp := result
		p.last = &cp
		p.mu.Unlock()
	}()

	if p.url == "" {
		result.Detail = "endpoint not configured"
		return result
	}

	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, p.url, nil)
	if err != nil {
		result.Detail = fmt.Sprintf("build health request: %v", err)
		return result
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		result.Detail = fmt.Sprintf("health request failed: %v", err)
		return result
	}
	defer resp.Body.Close()
	result.Latency = time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Detail = fmt.Sprintf("health returned %d", resp.StatusCode)
		return result
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		result.Detail = fmt.Sprintf("read health body: %v", err)
		return result
	}
	var parsed healthBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		result.Detail = "health body unparseable"
		return result
	}
	if !strings.EqualFold(parsed.Status, "ok") {
		result.Detail = fmt.Sprintf("health status %q", parsed.Status)
		return result
	}

	result.Healthy = true
	return result
}

func (p *httpProbe) Last() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Result{}, false
	}
	return *p.last, true
}
