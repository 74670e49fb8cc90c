package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ComponentConfig identifies the component the events describe.
type ComponentConfig struct {
	PublishableKey string
	PlatformID     string
	MerchantID     string
	LiveMode       *bool
	Component      string
}

// ComponentClient emits the analytics stream of one mounted session. The
// viewed, page loaded and component loaded milestones are emitted at most once.
type ComponentClient struct {
	sender        Sender
	cfg           ComponentConfig
	instanceID    string
	constructedAt time.Time

	now      func() time.Time
	dispatch func(func())

	mu                    sync.Mutex
	firstViewedAt         time.Time
	pageViewID            string
	loggedViewed          bool
	loggedPageLoaded      bool
	loggedComponentLoaded bool
}

type ComponentOption func(*ComponentClient)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ComponentOption {
	return func(c *ComponentClient) { c.now = now }
}

// Synchronous sends events on the calling goroutine instead of in the background.
func Synchronous() ComponentOption {
	return func(c *ComponentClient) { c.dispatch = func(f func()) { f() } }
}

func NewComponentClient(sender Sender, cfg ComponentConfig, opts ...ComponentOption) *ComponentClient {
	if sender == nil {
		sender = Discard{}
	}
	c := &ComponentClient{
		sender:     sender,
		cfg:        cfg,
		instanceID: uuid.NewString(),
		now:        time.Now,
		dispatch:   func(f func()) { go f() },
	}
	for _, o := range opts {
		o(c)
	}
	c.constructedAt = c.now()
	return c
}

// InstanceID is shared by every event of this client.
func (c *ComponentClient) InstanceID() string { return c.instanceID }

func (c *ComponentClient) log(name string, metadata map[string]any) {
	ev := Event{
		EventID:           uuid.NewString(),
		Created:           c.now().UnixMilli(),
		PublishableKey:    c.cfg.PublishableKey,
		PlatformID:        c.cfg.PlatformID,
		MerchantID:        c.cfg.MerchantID,
		LiveMode:          c.cfg.LiveMode,
		Component:         c.cfg.Component,
		ComponentInstance: c.instanceID,
		Name:              name,
		Metadata:          metadata,
	}
	metricEmitted.WithLabelValues(name).Inc()
	c.dispatch(func() { c.sender.Send(context.Background(), ev) })
}

func (c *ComponentClient) LogCreated() {
	c.log(EventComponentCreated, nil)
}

// LogViewed records the first time the component became visible.
func (c *ComponentClient) LogViewed() {
	c.mu.Lock()
	if c.loggedViewed {
		c.mu.Unlock()
		metricDeduplicated.WithLabelValues(EventComponentViewed).Inc()
		return
	}
	c.loggedViewed = true
	c.firstViewedAt = c.now()
	c.mu.Unlock()

	c.log(EventComponentViewed, nil)
}

// LogWebPageLoaded records the hosted page finishing its load.
func (c *ComponentClient) LogWebPageLoaded(pageViewID string) {
	c.mu.Lock()
	if c.loggedPageLoaded {
		c.mu.Unlock()
		metricDeduplicated.WithLabelValues(EventWebPageLoaded).Inc()
		return
	}
	c.loggedPageLoaded = true
	if pageViewID != "" {
		c.pageViewID = pageViewID
	}
	timeToLoad := c.now().Sub(c.constructedAt).Seconds()
	c.mu.Unlock()

	metricTimeToLoad.WithLabelValues("page").Observe(timeToLoad)
	c.log(EventWebPageLoaded, map[string]any{"time_to_load": timeToLoad})
}

// LogComponentLoaded records the hosted component finishing initialization.
// perceived_time_to_load is only reported once the component was viewed.
func (c *ComponentClient) LogComponentLoaded() {
	c.mu.Lock()
	if c.loggedComponentLoaded {
		c.mu.Unlock()
		metricDeduplicated.WithLabelValues(EventWebComponentLoaded).Inc()
		return
	}
	c.loggedComponentLoaded = true
	now := c.now()
	md := map[string]any{"time_to_load": now.Sub(c.constructedAt).Seconds()}
	if c.loggedViewed {
		md["perceived_time_to_load"] = now.Sub(c.firstViewedAt).Seconds()
	}
	if c.pageViewID != "" {
		md["page_view_id"] = c.pageViewID
	}
	c.mu.Unlock()

	metricTimeToLoad.WithLabelValues("component").Observe(md["time_to_load"].(float64))
	c.log(EventWebComponentLoaded, md)
}

// LogError emits an error event named kind. It is never deduplicated.
func (c *ComponentClient) LogError(kind string, details map[string]any) {
	c.log(kind, details)
}

// LogClientError is the catch-all for host side failures.
func (c *ComponentClient) LogClientError(err error, file string, line int) {
	md := errorFields(err)
	if file != "" {
		md["file"] = file
	}
	if line > 0 {
		md["line"] = line
	}
	c.LogError(EventClientError, md)
}

func (c *ComponentClient) LogPageLoadError(err error, url string) {
	md := errorFields(err)
	if url != "" {
		md["url"] = url
	}
	c.LogError(EventWebErrorPageLoad, md)
}

func (c *ComponentClient) LogUnexpectedNavigation(url string) {
	c.LogError(EventWebErrorUnexpectedNav, map[string]any{"url": url})
}

func (c *ComponentClient) LogUnexpectedLoadErrorType(errorType string) {
	c.LogError(EventWebErrorUnexpectedLoadError, map[string]any{"error_type": errorType})
}

func (c *ComponentClient) LogUnrecognizedSetter(setter string) {
	c.LogError(EventWebWarnUnrecognizedSetter, map[string]any{"setter_name": setter})
}

func (c *ComponentClient) LogDeserializeMessageError(message string, err error) {
	c.LogError(EventWebErrorDeserializeMessage, map[string]any{
		"message_name":  message,
		"error_message": err.Error(),
	})
}

func (c *ComponentClient) LogAuthenticatedWebViewOpened(id string) {
	c.log(EventAuthenticatedWebOpened, map[string]any{"id": id})
}

func (c *ComponentClient) LogAuthenticatedWebViewCanceled(id string) {
	c.log(EventAuthenticatedWebCanceled, map[string]any{"id": id})
}

func (c *ComponentClient) LogAuthenticatedWebViewRedirected(id string) {
	c.log(EventAuthenticatedWebRedirected, map[string]any{"id": id})
}

func (c *ComponentClient) LogAuthenticatedWebViewError(id string, err error) {
	c.LogError(EventAuthenticatedWebError, map[string]any{"id": id, "error_message": err.Error()})
}

// errorFields mirrors the message/domain split the collector expects; the
// domain is the innermost wrapped error's type name.
func errorFields(err error) map[string]any {
	if err == nil {
		return map[string]any{"error_message": "unknown error"}
	}
	md := map[string]any{"error_message": err.Error()}
	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	md["error_domain"] = fmt.Sprintf("%T", root)
	return md
}
