package bridge

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"embedconnect/bridge/internal/connect"
)

const (
	ProductionOrigin      = "https://connect-js.stripe.com"
	ProtocolVersion       = "v1.0"
	DefaultPlatformFamily = "native"

	productLabel = "Stripe Connect Go SDK"
	sdkLabel     = "stripe-connect-go"

	DefaultFontFamily = "-apple-system, 'system-ui', 'Segoe UI', Roboto, Helvetica, Arial, sans-serif, 'Apple Color Emoji', 'Segoe UI Emoji', 'Segoe UI Symbol'"
)

var versionRE = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Env describes where the hosted content lives and who is hosting it.
type Env struct {
	Origin         string
	PlatformFamily string
	Platform       string
	OSVersion      string
	SDKVersion     string
}

func (e Env) withDefaults() Env {
	if e.Origin == "" {
		e.Origin = ProductionOrigin
	}
	if e.PlatformFamily == "" {
		e.PlatformFamily = DefaultPlatformFamily
	}
	return e
}

// Validate checks the fields the hosted page is strict about.
func (e Env) Validate() error {
	if !versionRE.MatchString(e.SDKVersion) {
		return fmt.Errorf("%w: sdk version %q must be in X.Y.Z format", connect.ErrConfiguration, e.SDKVersion)
	}
	if _, err := url.Parse(e.withDefaults().Origin); err != nil {
		return fmt.Errorf("%w: origin: %v", connect.ErrConfiguration, err)
	}
	return nil
}

// UserAgent is sent with every request the surface makes. The hosted
// content parses it, so the order and separators are fixed.
func (e Env) UserAgent() string {
	prefix := "Mobile"
	switch e.Platform {
	case "ios":
		prefix = "iPhone"
	case "android":
		prefix = "Android"
	}
	return strings.Join([]string{
		prefix,
		productLabel + " " + e.Platform + "/" + e.OSVersion,
		sdkLabel + "/" + e.SDKVersion,
	}, " - ")
}

// Address builds the surface URL. Overrides without a value are left out
// of the fragment.
func Address(env Env, kind Kind, cfg connect.Configuration) string {
	env = env.withDefaults()
	type param struct{ key, value string }
	params := []param{
		{"component", string(kind)},
		{"publicKey", cfg.PublicKey},
		{"merchantIdOverride", cfg.Overrides.MerchantID},
		{"platformIdOverride", cfg.Overrides.PlatformID},
		{"apiKeyOverride", cfg.Overrides.APIKey},
	}
	if cfg.Overrides.LiveMode != nil {
		params = append(params, param{"liveModeOverride", strconv.FormatBool(*cfg.Overrides.LiveMode)})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.value == "" {
			continue
		}
		parts = append(parts, escapeComponent(p.key)+"="+escapeComponent(p.value))
	}
	return strings.TrimRight(env.Origin, "/") + "/" + ProtocolVersion + "/" + env.PlatformFamily + "_host.html#" + strings.Join(parts, "&")
}

// escapeComponent matches encodeURIComponent: spaces become %20, not '+'.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

type InitParams struct {
	Appearance *connect.Appearance  `json:"appearance,omitempty" msgpack:"appearance,omitempty"`
	Locale     string               `json:"locale,omitempty" msgpack:"locale,omitempty"`
	Fonts      []connect.FontSource `json:"fonts,omitempty" msgpack:"fonts,omitempty"`
}

type AppInfo struct {
	ApplicationID string `json:"applicationId,omitempty" msgpack:"applicationId,omitempty"`
}

// BootPayload is attached to the surface when it is created so the hosted
// content has its first configuration before it can ask for anything.
type BootPayload struct {
	InitParams         InitParams     `json:"initParams" msgpack:"initParams"`
	InitComponentProps map[string]any `json:"initComponentProps,omitempty" msgpack:"initComponentProps,omitempty"`
	AppInfo            AppInfo        `json:"appInfo" msgpack:"appInfo"`
}

func newBootPayload(cfg connect.Configuration, extraFonts []connect.FontSource, props map[string]any) BootPayload {
	fonts := cfg.Fonts
	if len(extraFonts) > 0 {
		fonts = append(append([]connect.FontSource(nil), cfg.Fonts...), extraFonts...)
	}
	return BootPayload{
		InitParams: InitParams{
			Appearance: withDefaultFontFamily(cfg.Appearance),
			Locale:     cfg.Locale,
			Fonts:      fonts,
		},
		InitComponentProps: props,
		AppInfo:            AppInfo{ApplicationID: cfg.Overrides.ApplicationID},
	}
}

// withDefaultFontFamily returns a copy of a with variables.fontFamily set
// when the caller left it empty. a itself is never modified.
func withDefaultFontFamily(a *connect.Appearance) *connect.Appearance {
	if a != nil {
		if v, ok := a.Variables["fontFamily"].(string); ok && v != "" {
			return a
		}
	}
	out := &connect.Appearance{Variables: map[string]any{}}
	if a != nil {
		out.Overlays = a.Overlays
		for k, v := range a.Variables {
			out.Variables[k] = v
		}
	}
	out.Variables["fontFamily"] = DefaultFontFamily
	return out
}
