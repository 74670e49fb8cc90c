package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultEndpoint = "https://r.stripe.com/0"
	ClientID        = "mobile_connect_sdk"
	Origin          = "stripe-connect-go"
)

// SystemInfo describes the host the events are sent from.
type SystemInfo struct {
	Platform   string
	SDKVersion string
	OSVersion  string
	DeviceType string
	AppName    string
	AppVersion string
}

// Sender delivers one event. Implementations never fail the caller.
type Sender interface {
	Send(ctx context.Context, ev Event)
}

// Discard drops every event; used when analytics are disabled.
type Discard struct{}

func (Discard) Send(context.Context, Event) {}

// Client posts events to the collection endpoint.
type Client struct {
	http     *http.Client
	endpoint string
	info     SystemInfo
	logger   *slog.Logger
}

type Option func(*Client)

func WithEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

func NewClient(info SystemInfo, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		endpoint: DefaultEndpoint,
		info:     info,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// UserAgent is the identification header sent with every event.
func (c *Client) UserAgent() string {
	return "Stripe/v1 " + c.info.Platform + "/" + c.info.SDKVersion
}

// Send attaches the system fields and posts ev. Transport errors and non-2xx
// responses are dropped.
func (c *Client) Send(ctx context.Context, ev Event) {
	ev.ClientID = ClientID
	ev.Origin = Origin
	ev.Platform = c.info.Platform
	ev.SDKVersion = c.info.SDKVersion
	ev.OSVersion = c.info.OSVersion
	ev.DeviceType = c.info.DeviceType
	ev.AppName = c.info.AppName
	ev.AppVersion = c.info.AppVersion

	body, err := json.Marshal(ev)
	if err != nil {
		c.drop(ev, "encode", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.drop(ev, "request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		c.drop(ev, "network", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode/100 != 2 {
		c.drop(ev, "status", nil, "status", resp.StatusCode)
		return
	}
	metricSent.WithLabelValues("ok").Inc()
}

func (c *Client) drop(ev Event, reason string, err error, attrs ...any) {
	metricSent.WithLabelValues(reason).Inc()
	args := append([]any{"event", ev.Name, "reason", reason}, attrs...)
	if err != nil {
		args = append(args, "err", err)
	}
	c.logger.Debug("analytics event dropped", args...)
}
