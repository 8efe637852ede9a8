package config

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Target     string
	Browser    BrowserConfig
	API        APIConfig
	HTTP       HTTPConfig
	Thresholds ThresholdConfig
	Timing     TimingConfig
	Report     ReportConfig
	LLM        LLMConfig
	Webhook    WebhookConfig
	Server     ServerConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// BrowserConfig controls the Rod browser instance used by functional probes.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// Timeout bounds navigation and each element operation.
	Timeout time.Duration // default: 30s

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects go-rod/stealth before navigation.
	Stealth bool // default: false

	WindowWidth  int // default: 1920
	WindowHeight int // default: 1080
}

// APIConfig describes the remote API endpoint exercised by the probes.
type APIConfig struct {
	Endpoint string
	PRURL    string
	Key      string
	Origin   string
	Referer  string
}

// Headers returns the request headers sent with every API probe.
func (a APIConfig) Headers() map[string]string {
	return map[string]string{
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
		"Connection":      "keep-alive",
		"Content-Type":    "application/json",
		"Origin":          a.Origin,
		"Referer":         a.Referer,
		"User-Agent":      DesktopUA,
		"X-API-KEY":       a.Key,
	}
}

// Payload returns the smoke-test request body.
func (a APIConfig) Payload() map[string]string {
	return map[string]string{"prUrl": a.PRURL}
}

// HTTPConfig controls the probe HTTP client.
type HTTPConfig struct {
	Timeout time.Duration // default: 30s

	// InsecureTLS skips certificate verification.
	InsecureTLS bool // default: true

	// Proxy is an optional http(s) proxy URL.
	Proxy string
}

// ThresholdConfig holds the performance limits.
type ThresholdConfig struct {
	MaxLoadTime     time.Duration // default: 5s
	MaxResponseTime time.Duration // default: 2s
	MaxPageSize     int64         // default: 1 MiB

	// LayoutDistance is the SimHash distance above which a device variant is
	// reported as diverging from desktop. 0 disables the comparison.
	LayoutDistance int // default: 24
}

// TimingConfig holds the settle delays used by the browser probes.
type TimingConfig struct {
	NavSettle    time.Duration // default: 3s
	ScrollSettle time.Duration // default: 1s
	ClickSettle  time.Duration // default: 2s
	BackSettle   time.Duration // default: 1s
	SubmitSettle time.Duration // default: 1s
}

// ReportConfig controls report persistence.
type ReportConfig struct {
	Dir     string   // default: "."
	Formats []string // default: ["json"]
}

// LLMConfig enables the optional narrative analysis.
type LLMConfig struct {
	APIKey  string
	Model   string // default: "gpt-4o-mini"
	BaseURL string // default: "https://api.openai.com/v1"
}

// Enabled reports whether an API key was configured.
func (c LLMConfig) Enabled() bool { return c.APIKey != "" }

// WebhookConfig controls run.completed delivery.
type WebhookConfig struct {
	URL    string
	Secret string
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Host    string // default: "0.0.0.0"
	Port    int    // default: 8090
	Mode    string // "debug", "release", "test"; default: "release"
	MaxRuns int    // default: 1
	RunTTL  time.Duration
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool // default: true
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// User agents used by the probes.
const (
	DesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
	MobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
	TabletUA  = "Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
)

const (
	defaultTarget   = "http://mission-codex.s3-website.ap-south-1.amazonaws.com/"
	defaultEndpoint = "http://13.204.81.166:8080/api/v1/review"
	defaultPRURL    = "https://github.com/open-sauced/app/pull/4077"
)

// Load reads a .env file when present, then configuration from environment
// variables with sane defaults. Variables already set in the environment win
// over the .env file.
func Load() *Config {
	if envFile := os.Getenv("QA_ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("failed to load env file", "path", envFile, "error", err)
		}
	} else if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env from working directory")
	}

	target := envOr("TARGET_WEBSITE", defaultTarget)

	return &Config{
		Target: target,
		Browser: BrowserConfig{
			Headless:     envBoolOr("BROWSER_HEADLESS", true),
			Timeout:      envSecondsOr("BROWSER_TIMEOUT", 30*time.Second),
			NoSandbox:    envBoolOr("QA_NO_SANDBOX", true),
			BrowserBin:   os.Getenv("QA_BROWSER_BIN"),
			Stealth:      envBoolOr("QA_STEALTH", false),
			WindowWidth:  envSizeOr("QA_WINDOW_SIZE", 0, 1920),
			WindowHeight: envSizeOr("QA_WINDOW_SIZE", 1, 1080),
		},
		API: APIConfig{
			Endpoint: envOr("QA_API_ENDPOINT", defaultEndpoint),
			PRURL:    envOr("QA_API_PR_URL", defaultPRURL),
			Key:      envOr("QA_API_KEY", "test-api-key-123"),
			Origin:   envOr("QA_API_ORIGIN", OriginOf(target)),
			Referer:  envOr("QA_API_REFERER", target),
		},
		HTTP: HTTPConfig{
			Timeout:     envDurationOr("QA_HTTP_TIMEOUT", 30*time.Second),
			InsecureTLS: envBoolOr("QA_INSECURE_TLS", true),
			Proxy:       os.Getenv("QA_PROXY"),
		},
		Thresholds: ThresholdConfig{
			MaxLoadTime:     envDurationOr("QA_MAX_LOAD_TIME", 5*time.Second),
			MaxResponseTime: envDurationOr("QA_MAX_RESPONSE_TIME", 2*time.Second),
			MaxPageSize:     int64(envIntOr("QA_MAX_PAGE_SIZE", 1024*1024)),
			LayoutDistance:  envIntOr("QA_LAYOUT_DISTANCE", 24),
		},
		Timing: TimingConfig{
			NavSettle:    envDurationOr("QA_NAV_SETTLE", 3*time.Second),
			ScrollSettle: envDurationOr("QA_SCROLL_SETTLE", time.Second),
			ClickSettle:  envDurationOr("QA_CLICK_SETTLE", 2*time.Second),
			BackSettle:   envDurationOr("QA_BACK_SETTLE", time.Second),
			SubmitSettle: envDurationOr("QA_SUBMIT_SETTLE", time.Second),
		},
		Report: ReportConfig{
			Dir:     envOr("QA_REPORT_DIR", "."),
			Formats: envSliceOr("QA_REPORT_FORMATS", []string{"json"}),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOr("QA_LLM_MODEL", "gpt-4o-mini"),
			BaseURL: envOr("QA_LLM_BASE_URL", "https://api.openai.com/v1"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("QA_WEBHOOK_URL"),
			Secret: os.Getenv("QA_WEBHOOK_SECRET"),
		},
		Server: ServerConfig{
			Host:    envOr("QA_HOST", "0.0.0.0"),
			Port:    envIntOr("QA_PORT", 8090),
			Mode:    envOr("QA_MODE", "release"),
			MaxRuns: envIntOr("QA_MAX_RUNS", 1),
			RunTTL:  envDurationOr("QA_RUN_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("QA_AUTH_ENABLED", true),
			APIKeys: envSliceOr("QA_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("QA_RATE_RPS", 1.0),
			Burst:             envIntOr("QA_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("QA_LOG_LEVEL", "info"),
			Format: envOr("QA_LOG_FORMAT", "text"),
		},
	}
}

// OriginOf returns scheme://host of rawURL, or rawURL itself if it does not parse.
func OriginOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimSuffix(rawURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envSecondsOr accepts either a bare integer number of seconds or a Go duration.
func envSecondsOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envSizeOr reads a WIDTHxHEIGHT value and returns component idx.
func envSizeOr(key string, idx int, fallback int) int {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(strings.ToLower(v), "x")
		if len(parts) == 2 {
			if n, err := strconv.Atoi(strings.TrimSpace(parts[idx])); err == nil && n > 0 {
				return n
			}
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
