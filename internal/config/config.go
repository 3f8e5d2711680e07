// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const DefaultBackendURL = "http://localhost/api"

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Backend   BackendConfig   `koanf:"backend"`
	Frontend  FrontendConfig  `koanf:"frontend"`
	Routes    RoutesConfig    `koanf:"routes"`
	Redis     RedisConfig     `koanf:"redis"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// BackendConfig points at the remote REST API that owns sessions,
// subscriptions and listings.
type BackendConfig struct {
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	XSRFCookie    string        `koanf:"xsrf_cookie"`
	SessionCookie string        `koanf:"session_cookie"`
	// TrustProxy honours X-Forwarded-Proto/Host when rebuilding the
	// Referer sent upstream. Enable only behind a proxy that sets them.
	TrustProxy bool `koanf:"trust_proxy"`
}

// FrontendConfig points at the web renderer that receives navigations
// once the gate allows them.
type FrontendConfig struct {
	URL string `koanf:"url"`
}

type RoutesConfig struct {
	AdminPrefix  string `koanf:"admin_prefix"`
	OwnerPrefix  string `koanf:"owner_prefix"`
	Login        string `koanf:"login"`
	Subscription string `koanf:"subscription"`
	AddProperty  string `koanf:"add_property"`
	PropertyList string `koanf:"property_list"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	ListingTTL time.Duration `koanf:"listing_ttl"`
	OptionsTTL time.Duration `koanf:"options_ttl"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if legacy := os.Getenv("NEXT_PUBLIC_API_URL"); legacy != "" {
		if err := k.Set("backend.url", legacy); err != nil {
			return nil, fmt.Errorf("set backend url: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Portal Gateway",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"backend.url":            DefaultBackendURL,
		"backend.timeout":        "5s",
		"backend.xsrf_cookie":    "XSRF-TOKEN",
		"backend.session_cookie": "laravel_session",
		"backend.trust_proxy":    false,

		"frontend.url": "http://localhost:3000",

		"routes.admin_prefix":  "/admin",
		"routes.owner_prefix":  "/owner",
		"routes.login":         "/login",
		"routes.subscription":  "/owner/subscription",
		"routes.add_property":  "/owner/properties/add",
		"routes.property_list": "/owner/properties",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"cache.enabled":     true,
		"cache.listing_ttl": "1m",
		"cache.options_ttl": "10m",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
			"X-XSRF-TOKEN",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "portal-gateway",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"API_URL":                     "backend.url",
	"BACKEND_TIMEOUT":             "backend.timeout",
	"XSRF_COOKIE_NAME":            "backend.xsrf_cookie",
	"SESSION_COOKIE_NAME":         "backend.session_cookie",
	"TRUST_PROXY":                 "backend.trust_proxy",
	"FRONTEND_URL":                "frontend.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"CACHE_ENABLED":               "cache.enabled",
	"CACHE_LISTING_TTL":           "cache.listing_ttl",
	"CACHE_OPTIONS_TTL":           "cache.options_ttl",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"METRICS_ENABLED":             "metrics.enabled",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if err := validateURL("backend.url", c.Backend.URL); err != nil {
		return err
	}

	if err := validateURL("frontend.url", c.Frontend.URL); err != nil {
		return err
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}

	if c.Backend.XSRFCookie == "" {
		return fmt.Errorf("backend.xsrf_cookie is required")
	}

	if c.Backend.SessionCookie == "" {
		return fmt.Errorf("backend.session_cookie is required")
	}

	if err := validateRoutes(c.Routes); err != nil {
		return err
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL: %q", key, raw)
	}

	return nil
}

func validateRoutes(r RoutesConfig) error {
	paths := map[string]string{
		"routes.admin_prefix":  r.AdminPrefix,
		"routes.owner_prefix":  r.OwnerPrefix,
		"routes.login":         r.Login,
		"routes.subscription":  r.Subscription,
		"routes.add_property":  r.AddProperty,
		"routes.property_list": r.PropertyList,
	}

	for key, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/': %q", key, p)
		}
	}

	if strings.HasPrefix(r.Login, r.AdminPrefix) ||
		strings.HasPrefix(r.Login, r.OwnerPrefix) {
		return fmt.Errorf("routes.login must not be under a protected prefix")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
