// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the listing site crawled when site.base_url is unset.
const DefaultBaseURL = "https://thechive.com"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig describes the listing site and its markup.
type SiteConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	TotalPages      int    `mapstructure:"total_pages"`
	ListingSelector string `mapstructure:"listing_selector"`
	GalleryMarker   string `mapstructure:"gallery_marker"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	// TimeoutSeconds of 0 leaves requests unbounded.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
}

// ProxyConfig routes requests through a SOCKS5 proxy.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// PacingConfig holds the initial auto-play settings.
type PacingConfig struct {
	AutoPlay        bool    `mapstructure:"auto_play"`
	IntervalSeconds float64 `mapstructure:"interval_seconds"`
	PauseOnError    bool    `mapstructure:"pause_on_error"`
}

// RateLimitConfig sets an optional per-host request budget.
type RateLimitConfig struct {
	// RPS of 0 disables the limiter.
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// StorageConfig selects where saved images are written.
type StorageConfig struct {
	SaveDir string `mapstructure:"save_dir"`
}

// ServerConfig controls the control API.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"autoplay": "pacing.auto_play",
	"interval": "pacing.interval_seconds",
	"save-dir": "storage.save_dir",
	"port":     "server.port",
}

// Load builds a Config from defaults, an optional file, the environment
// and, when flags is non-nil, any flags the user set explicitly.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	if flags.Changed("port") {
		v.Set("server.enabled", true)
	}
	if noProxy, err := flags.GetBool("no-proxy"); err == nil && noProxy {
		v.Set("proxy.enabled", false)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", DefaultBaseURL)
	v.SetDefault("site.total_pages", 282)
	v.SetDefault("site.listing_selector", "")
	v.SetDefault("site.gallery_marker", "")
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.timeout_seconds", 0)
	v.SetDefault("http.max_body_bytes", 32*1024*1024)
	v.SetDefault("proxy.enabled", true)
	v.SetDefault("proxy.address", "127.0.0.1:9150")
	v.SetDefault("pacing.auto_play", false)
	v.SetDefault("pacing.interval_seconds", 3.0)
	v.SetDefault("pacing.pause_on_error", true)
	v.SetDefault("ratelimit.rps", 0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("storage.save_dir", defaultSaveDir())
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

func defaultSaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Pictures"
	}
	return filepath.Join(home, "Pictures")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL, got %q", c.Site.BaseURL)
	}
	if c.Site.TotalPages <= 0 {
		return fmt.Errorf("site.total_pages must be > 0")
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be >= 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.Proxy.Enabled && strings.TrimSpace(c.Proxy.Address) == "" {
		return fmt.Errorf("proxy.address must be set when the proxy is enabled")
	}
	if c.Pacing.IntervalSeconds <= 0 {
		return fmt.Errorf("pacing.interval_seconds must be > 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("ratelimit.rps must be >= 0")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.burst must be > 0 when rate limiting is enabled")
	}
	if strings.TrimSpace(c.Storage.SaveDir) == "" {
		return fmt.Errorf("storage.save_dir is required")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}

// RequestTimeout converts http.timeout_seconds into a duration; zero means none.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
