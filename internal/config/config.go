package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Daejung  DaejungConfig
	Duksan   DuksanConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	DefaultBrand    string
}

type BrowserConfig struct {
	Headless          bool
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	MaxSessions       int
	UserAgent         string
	AcceptLanguage    string
	TimezoneID        string
	Locale            string
	ProxyServer       string
	BlockedResources  []string
}

type ScraperConfig struct {
	MaxRetries     int
	RetryDelay     time.Duration
	RatePerSecond  float64
	RateBurst      int
	RateLimitMin   time.Duration
	RateLimitMax   time.Duration
	HTTPTimeout    time.Duration
	UserAgent      string
	LabelKeywords  []string
	OverlayButtons []string
}

type DaejungConfig struct {
	Enabled       bool
	BaseURL       string
	SearchPath    string
	PopupPath     string
	LabelWait     string
	LabelSelector string
	LabelTimeout  time.Duration
}

type DuksanConfig struct {
	Enabled    bool
	BaseURL    string
	SearchPath string
}

type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// Enabled reports whether snapshot history should be recorded.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != "" || d.Host != ""
}

// DSN returns URL when set, otherwise a DSN assembled from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "8000"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 180*time.Second),
			RequestTimeout:  getDurationOrDefault("SERVER_REQUEST_TIMEOUT", 170*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
			DefaultBrand:    getEnvOrDefault("DEFAULT_BRAND", "daejung"),
		},
		Browser: BrowserConfig{
			Headless:          getBoolOrDefault("BROWSER_HEADLESS", true),
			NavigationTimeout: getDurationOrDefault("BROWSER_NAVIGATION_TIMEOUT", 35*time.Second),
			ElementTimeout:    getDurationOrDefault("BROWSER_ELEMENT_TIMEOUT", 25*time.Second),
			MaxSessions:       getIntOrDefault("BROWSER_MAX_SESSIONS", 2),
			UserAgent:         getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			AcceptLanguage:    getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ko-KR,ko;q=0.9,en;q=0.8"),
			TimezoneID:        getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Seoul"),
			Locale:            getEnvOrDefault("BROWSER_LOCALE", "ko-KR"),
			ProxyServer:       getEnvOrDefault("BROWSER_PROXY", ""),
			BlockedResources:  getStringSliceOrDefault("BROWSER_BLOCKED_RESOURCES", []string{"image", "media", "font"}),
		},
		Scraper: ScraperConfig{
			MaxRetries:     getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			RetryDelay:     getDurationOrDefault("SCRAPER_RETRY_DELAY", time.Second),
			RatePerSecond:  getFloatOrDefault("SCRAPER_RATE_PER_SECOND", 1),
			RateBurst:      getIntOrDefault("SCRAPER_RATE_BURST", 2),
			RateLimitMin:   getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 0),
			RateLimitMax:   getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 500*time.Millisecond),
			HTTPTimeout:    getDurationOrDefault("SCRAPER_HTTP_TIMEOUT", 15*time.Second),
			UserAgent:      getEnvOrDefault("SCRAPER_USER_AGENT", "Mozilla/5.0"),
			LabelKeywords:  getStringSliceOrDefault("LABEL_KEYWORDS", nil),
			OverlayButtons: getStringSliceOrDefault("SCRAPER_OVERLAY_BUTTONS", nil),
		},
		Daejung: DaejungConfig{
			Enabled:       getBoolOrDefault("DAEJUNG_ENABLED", true),
			BaseURL:       getEnvOrDefault("DAEJUNG_BASE_URL", "https://www.daejungchem.co.kr"),
			SearchPath:    getEnvOrDefault("DAEJUNG_SEARCH_PATH", "/02_product/search/"),
			PopupPath:     getEnvOrDefault("DAEJUNG_POPUP_PATH", "/02_product/popup/"),
			LabelWait:     getEnvOrDefault("DAEJUNG_LABEL_WAIT", "div.control_wrap2"),
			LabelSelector: getEnvOrDefault("DAEJUNG_LABEL_SELECTOR", "div.control_wrap2 p.pp"),
			LabelTimeout:  getDurationOrDefault("DAEJUNG_LABEL_TIMEOUT", 25*time.Second),
		},
		Duksan: DuksanConfig{
			Enabled:    getBoolOrDefault("DUKSAN_ENABLED", true),
			BaseURL:    getEnvOrDefault("DUKSAN_BASE_URL", "https://duksan.kr"),
			SearchPath: getEnvOrDefault("DUKSAN_SEARCH_PATH", "/products/prd_search.php"),
		},
		Cache: CacheConfig{
			Backend:       getEnvOrDefault("CACHE_BACKEND", "memory"),
			TTL:           getDurationOrDefault("CACHE_TTL", 30*time.Second),
			RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
			RedisDB:       getIntOrDefault("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			URL:      getEnvOrDefault("DATABASE_URL", ""),
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "chem_prices"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Browser.MaxSessions < 1 {
		return fmt.Errorf("BROWSER_MAX_SESSIONS must be at least 1")
	}

	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must be at least 1")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}

	if !c.Daejung.Enabled && !c.Duksan.Enabled {
		return fmt.Errorf("at least one supplier must be enabled")
	}

	switch c.Server.DefaultBrand {
	case "daejung":
		if !c.Daejung.Enabled {
			return fmt.Errorf("DEFAULT_BRAND daejung is disabled")
		}
	case "duksan":
		if !c.Duksan.Enabled {
			return fmt.Errorf("DEFAULT_BRAND duksan is disabled")
		}
	default:
		return fmt.Errorf("unknown DEFAULT_BRAND %q", c.Server.DefaultBrand)
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
