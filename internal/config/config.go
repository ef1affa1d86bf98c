package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "FESTICART"

const defaultAPIURL = "http://localhost:8000/api"

type Config struct {
	App   AppConfig
	API   APIConfig
	Redis RedisConfig
	Store StoreConfig
	Scan  ScanConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.API.BaseURL = NormalizeBaseURL(cfg.API.BaseURL)
	if err := cfg.Scan.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	LogLevel     string `envconfig:"FESTICART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FESTICART_LOG_WARN_STACK" default:"false"`
	HTTPAddr     string `envconfig:"FESTICART_HTTP_ADDR" default:":8080"`
}

type APIConfig struct {
	BaseURL string        `envconfig:"FESTICART_API_URL" default:"http://localhost:8000/api"`
	APIKey  string        `envconfig:"FESTICART_API_KEY"`
	Timeout time.Duration `envconfig:"FESTICART_API_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL         string        `envconfig:"FESTICART_REDIS_URL"`
	Address     string        `envconfig:"FESTICART_REDIS_ADDR" default:"localhost:6379"`
	Password    string        `envconfig:"FESTICART_REDIS_PASSWORD"`
	DB          int           `envconfig:"FESTICART_REDIS_DB" default:"0"`
	DialTimeout time.Duration `envconfig:"FESTICART_REDIS_DIAL_TIMEOUT" default:"100ms"`
}

// StoreConfig names the local persisted keys.
type StoreConfig struct {
	CartKey      string        `envconfig:"FESTICART_CART_KEY" default:"cart-storage"`
	AuthTokenKey string        `envconfig:"FESTICART_AUTH_TOKEN_KEY" default:"auth_token"`
	LockTimeout  time.Duration `envconfig:"FESTICART_CART_LOCK_TIMEOUT" default:"2s"`
}

type ScanConfig struct {
	ZoneMin            float64       `envconfig:"FESTICART_SCAN_ZONE_MIN" default:"0.35"`
	ZoneMax            float64       `envconfig:"FESTICART_SCAN_ZONE_MAX" default:"0.65"`
	HapticPulse        time.Duration `envconfig:"FESTICART_SCAN_HAPTIC_PULSE" default:"100ms"`
	GroupBySessionDate bool          `envconfig:"FESTICART_GROUP_BY_SESSION_DATE" default:"false"`
}

func (s ScanConfig) validate() error {
	if s.ZoneMin < 0 || s.ZoneMax > 1 || s.ZoneMin >= s.ZoneMax {
		return fmt.Errorf("invalid scan acceptance zone (%v, %v)", s.ZoneMin, s.ZoneMax)
	}
	return nil
}

// NormalizeBaseURL adds a scheme when missing and makes sure the path ends in /api.
func NormalizeBaseURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return defaultAPIURL
	}
	if !strings.HasPrefix(url, "http") {
		url = "http://" + url
	}
	url = strings.TrimRight(url, "/")
	if strings.HasSuffix(url, "/api") {
		return url
	}
	return url + "/api"
}
