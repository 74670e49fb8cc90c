package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"embedconnect/bridge/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			fmt.Fprintf(&b, " - %s", c.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Checker runs readiness checks against the services a mounted session
// depends on.
type Checker struct {
	Cfg    config.Config
	Client *http.Client
}

func NewChecker(cfg config.Config, client *http.Client) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Checker{Cfg: cfg, Client: client}
}

// CheckAll runs all health checks and returns combined status
func (c *Checker) CheckAll(ctx context.Context) HealthStatus {
	checks := []CheckResult{
		c.checkOrigin(ctx),
		c.checkSecretBackend(),
	}
	if c.Cfg.Analytics.Enabled {
		checks = append(checks, c.checkAnalytics(ctx))
	}

	allOK := true
	for _, r := range checks {
		if !r.OK {
			allOK = false
		}
	}
	return HealthStatus{OK: allOK, Checks: checks, CheckedAt: time.Now().UTC()}
}

// checkOrigin fetches the host page the surfaces load.
func (c *Checker) checkOrigin(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "hosted_origin"}

	url := strings.TrimRight(c.Cfg.Bridge.Origin, "/") + "/v1.0/" + c.Cfg.Bridge.PlatformFamily + "_host.html"
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()
	result.Latency = time.Since(start)

	if resp.StatusCode >= 400 {
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return result
	}
	result.OK = true
	return result
}

// checkAnalytics only verifies the collector answers; any non-5xx status
// counts since an empty post is rejected.
func (c *Checker) checkAnalytics(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "analytics"}

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.Cfg.Analytics.Endpoint, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()
	result.Latency = time.Since(start)

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return result
	}
	result.OK = true
	return result
}

func (c *Checker) checkSecretBackend() CheckResult {
	result := CheckResult{Name: "secret_backend"}
	if c.Cfg.Secret.GRPCAddr == "" && c.Cfg.Secret.HTTPURL == "" {
		result.Error = "SECRET_GRPC_ADDR or SECRET_HTTP_URL not set"
		return result
	}
	if c.Cfg.Connect.PublicKey == "" {
		result.Error = "STRIPE_PUBLISHABLE_KEY not set"
		return result
	}
	result.OK = true
	return result
}
