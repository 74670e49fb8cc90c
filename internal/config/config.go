package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Bridge struct {
		Origin         string
		PlatformFamily string
		Platform       string
		OSVersion      string
		SDKVersion     string
	}
	Connect struct {
		PublicKey      string
		Locale         string
		AppearanceFile string
		FontCSS        []string
		MerchantID     string
		PlatformID     string
		APIKey         string
		LiveMode       string
		ApplicationID  string
	}
	Secret struct {
		GRPCAddr   string
		GRPCMethod string
		HTTPURL    string
		TimeoutMs  int
	}
	Analytics struct {
		Endpoint string
		Enabled  bool
	}
	App struct {
		Name       string
		Version    string
		DeviceType string
	}
	Surface struct {
		TokenSecret    string
		TokenSkewSecs  int
		TokenTTLSecs   int
		OriginPatterns []string
		Backlog        int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("bridge.origin", "https://connect-js.stripe.com")
	v.SetDefault("bridge.platform_family", "native")
	v.SetDefault("bridge.platform", "server")
	v.SetDefault("bridge.sdk_version", "0.1.0")

	v.SetDefault("secret.grpc_method", "/embedconnect.v1.AccountSessions/CreateClientSecret")
	v.SetDefault("secret.timeout_ms", 10000)

	v.SetDefault("analytics.endpoint", "https://r.stripe.com/0")
	v.SetDefault("analytics.enabled", true)

	v.SetDefault("app.name", "bridged")
	v.SetDefault("app.device_type", "server")

	v.SetDefault("surface.token_skew_secs", 30)
	v.SetDefault("surface.token_ttl_secs", 600)
	v.SetDefault("surface.backlog", 1024)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("bridge.origin", "CONNECT_ORIGIN")
	v.BindEnv("bridge.platform", "CONNECT_PLATFORM")
	v.BindEnv("bridge.os_version", "CONNECT_OS_VERSION")
	v.BindEnv("bridge.sdk_version", "CONNECT_SDK_VERSION")

	v.BindEnv("connect.public_key", "STRIPE_PUBLISHABLE_KEY")
	v.BindEnv("connect.locale", "CONNECT_LOCALE")
	v.BindEnv("connect.appearance_file", "CONNECT_APPEARANCE_FILE")
	v.BindEnv("connect.font_css", "CONNECT_FONT_CSS")
	v.BindEnv("connect.merchant_id", "CONNECT_MERCHANT_ID_OVERRIDE")
	v.BindEnv("connect.platform_id", "CONNECT_PLATFORM_ID_OVERRIDE")
	v.BindEnv("connect.api_key", "CONNECT_API_KEY_OVERRIDE")
	v.BindEnv("connect.live_mode", "CONNECT_LIVE_MODE_OVERRIDE")
	v.BindEnv("connect.application_id", "CONNECT_APPLICATION_ID")

	v.BindEnv("secret.grpc_addr", "SECRET_GRPC_ADDR")
	v.BindEnv("secret.http_url", "SECRET_HTTP_URL")

	v.BindEnv("analytics.enabled", "ANALYTICS_ENABLED")

	v.BindEnv("surface.token_secret", "SURFACE_TOKEN_SECRET")
	v.BindEnv("surface.origin_patterns", "SURFACE_ORIGIN_PATTERNS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Bridge.Origin = v.GetString("bridge.origin")
	c.Bridge.PlatformFamily = v.GetString("bridge.platform_family")
	c.Bridge.Platform = v.GetString("bridge.platform")
	c.Bridge.OSVersion = v.GetString("bridge.os_version")
	c.Bridge.SDKVersion = v.GetString("bridge.sdk_version")

	c.Connect.PublicKey = v.GetString("connect.public_key")
	c.Connect.Locale = v.GetString("connect.locale")
	c.Connect.AppearanceFile = v.GetString("connect.appearance_file")
	c.Connect.FontCSS = splitList(v.GetString("connect.font_css"))
	c.Connect.MerchantID = v.GetString("connect.merchant_id")
	c.Connect.PlatformID = v.GetString("connect.platform_id")
	c.Connect.APIKey = v.GetString("connect.api_key")
	c.Connect.LiveMode = v.GetString("connect.live_mode")
	c.Connect.ApplicationID = v.GetString("connect.application_id")

	c.Secret.GRPCAddr = v.GetString("secret.grpc_addr")
	c.Secret.GRPCMethod = v.GetString("secret.grpc_method")
	c.Secret.HTTPURL = v.GetString("secret.http_url")
	c.Secret.TimeoutMs = v.GetInt("secret.timeout_ms")

	c.Analytics.Endpoint = v.GetString("analytics.endpoint")
	c.Analytics.Enabled = v.GetBool("analytics.enabled")

	c.App.Name = v.GetString("app.name")
	c.App.Version = v.GetString("app.version")
	c.App.DeviceType = v.GetString("app.device_type")

	c.Surface.TokenSecret = v.GetString("surface.token_secret")
	c.Surface.TokenSkewSecs = v.GetInt("surface.token_skew_secs")
	c.Surface.TokenTTLSecs = v.GetInt("surface.token_ttl_secs")
	c.Surface.OriginPatterns = splitList(v.GetString("surface.origin_patterns"))
	c.Surface.Backlog = v.GetInt("surface.backlog")

	slog.Info("config loaded", "port", c.Server.Port, "origin", c.Bridge.Origin, "sdk_version", c.Bridge.SDKVersion)
	return c
}

// LogLevel maps server.log_level onto slog levels; unknown values are info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toString(v any) string { return fmt.Sprint(v) }
