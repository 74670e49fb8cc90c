package bridge

import (
	"context"
	"encoding/json"
	"fmt"
)

// Entry points the hosted content exposes for host pushes.
const (
	EntryUpdateConnectInstance   = "updateConnectInstance"
	EntryCallSetter              = "callSetterWithSerializableValue"
	EntryResolveClientSecret     = "clientSecretDeferred.resolve"
	EntryReturnedFromAuthWebView = "returnedFromAuthenticatedWebView"
)

// Push is one unacknowledged host to content call. Seq increases per
// session in issue order.
type Push struct {
	Seq   uint64 `json:"seq" msgpack:"seq"`
	Entry string `json:"entry" msgpack:"entry"`
	Args  any    `json:"args" msgpack:"args"`
}

// Script renders the push as the statement a web view would evaluate.
func (p Push) Script() (string, error) {
	b, err := json.Marshal(p.Args)
	if err != nil {
		return "", fmt.Errorf("encode %s args: %w", p.Entry, err)
	}
	return fmt.Sprintf("(function() {\n  window.%s(%s);\n  true;\n})();", p.Entry, b), nil
}

// Surface is the handle of one hosted web context.
type Surface interface {
	// Inject queues p. It must not block on the remote side and must be
	// a no-op once the surface is closed.
	Inject(ctx context.Context, p Push) error
	Close() error
}

// LaunchRequest carries everything a launcher needs to bring up a surface.
type LaunchRequest struct {
	SessionID string
	URL       string
	UserAgent string
	Boot      BootPayload
	// OnMessage receives raw JSON envelopes, one at a time, in send order.
	OnMessage func(raw []byte)
}

// Launcher creates hosted surfaces.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) (Surface, error)
}
