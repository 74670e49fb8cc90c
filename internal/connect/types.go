package connect

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfiguration is the root of every configuration error. It is the only
// error class the bridge lets escape to its caller.
var ErrConfiguration = errors.New("configuration error")

// ErrNotAStore is returned when a value presented as a Store was not built by NewStore.
var ErrNotAStore = fmt.Errorf("%w: store must be created with connect.NewStore", ErrConfiguration)

// SecretFetcher returns a fresh client secret for the hosted content.
type SecretFetcher interface {
	FetchClientSecret(ctx context.Context) (string, error)
}

// SecretFetcherFunc adapts a plain function to SecretFetcher.
type SecretFetcherFunc func(ctx context.Context) (string, error)

func (f SecretFetcherFunc) FetchClientSecret(ctx context.Context) (string, error) { return f(ctx) }

// Appearance is passed through to the hosted content untouched, except for
// the default font family the bridge fills in.
type Appearance struct {
	Overlays  string         `json:"overlays,omitempty" yaml:"overlays,omitempty" msgpack:"overlays,omitempty"`
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty" msgpack:"variables,omitempty"`
}

// FontSource is either a stylesheet (CSSSrc) or a single custom font face.
type FontSource struct {
	CSSSrc       string `json:"cssSrc,omitempty" yaml:"css_src,omitempty" msgpack:"cssSrc,omitempty"`
	Family       string `json:"family,omitempty" yaml:"family,omitempty" msgpack:"family,omitempty"`
	Src          string `json:"src,omitempty" yaml:"src,omitempty" msgpack:"src,omitempty"`
	Display      string `json:"display,omitempty" yaml:"display,omitempty" msgpack:"display,omitempty"`
	Style        string `json:"style,omitempty" yaml:"style,omitempty" msgpack:"style,omitempty"`
	UnicodeRange string `json:"unicodeRange,omitempty" yaml:"unicode_range,omitempty" msgpack:"unicodeRange,omitempty"`
	Weight       string `json:"weight,omitempty" yaml:"weight,omitempty" msgpack:"weight,omitempty"`
}

// Overrides are internal knobs forwarded in the surface address and analytics.
type Overrides struct {
	MerchantID    string `json:"merchantId,omitempty" yaml:"merchant_id,omitempty"`
	PlatformID    string `json:"platformId,omitempty" yaml:"platform_id,omitempty"`
	APIKey        string `json:"apiKey,omitempty" yaml:"api_key,omitempty"`
	LiveMode      *bool  `json:"liveMode,omitempty" yaml:"live_mode,omitempty"`
	ApplicationID string `json:"applicationId,omitempty" yaml:"application_id,omitempty"`
}

// Configuration is the shared state of one logical connection.
type Configuration struct {
	PublicKey   string
	FetchSecret SecretFetcher
	Appearance  *Appearance
	Locale      string
	Fonts       []FontSource
	Overrides   Overrides
}

// Slot names a replaceable part of the configuration.
type Slot int

const (
	SlotPublicKey Slot = iota
	SlotFetchSecret
	SlotAppearance
	SlotLocale
	SlotFonts
	SlotOverrides
	numSlots
)

func (s Slot) String() string {
	switch s {
	case SlotPublicKey:
		return "publicKey"
	case SlotFetchSecret:
		return "fetchSecret"
	case SlotAppearance:
		return "appearance"
	case SlotLocale:
		return "locale"
	case SlotFonts:
		return "fonts"
	case SlotOverrides:
		return "overrides"
	}
	return "unknown"
}

// Revisions counts how many times each slot was replaced.
type Revisions [numSlots]uint64

// Changed reports whether slot s differs between r and prev.
func (r Revisions) Changed(prev Revisions, s Slot) bool { return r[s] != prev[s] }
