package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QA_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{"TARGET_WEBSITE", "BROWSER_HEADLESS", "BROWSER_TIMEOUT", "QA_REPORT_FORMATS", "OPENAI_API_KEY"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, defaultTarget, cfg.Target)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 1080, cfg.Browser.WindowHeight)
	assert.Equal(t, defaultEndpoint, cfg.API.Endpoint)
	assert.Equal(t, "http://mission-codex.s3-website.ap-south-1.amazonaws.com", cfg.API.Origin)
	assert.Equal(t, 5*time.Second, cfg.Thresholds.MaxLoadTime)
	assert.Equal(t, 2*time.Second, cfg.Thresholds.MaxResponseTime)
	assert.Equal(t, int64(1024*1024), cfg.Thresholds.MaxPageSize)
	assert.Equal(t, []string{"json"}, cfg.Report.Formats)
	assert.False(t, cfg.LLM.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QA_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("TARGET_WEBSITE", "https://shop.example.com/home")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_TIMEOUT", "45")
	t.Setenv("QA_WINDOW_SIZE", "1280x720")
	t.Setenv("QA_REPORT_FORMATS", "json, html ,markdown")
	t.Setenv("QA_MAX_LOAD_TIME", "8s")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()

	assert.Equal(t, "https://shop.example.com/home", cfg.Target)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 45*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 1280, cfg.Browser.WindowWidth)
	assert.Equal(t, 720, cfg.Browser.WindowHeight)
	assert.Equal(t, []string{"json", "html", "markdown"}, cfg.Report.Formats)
	assert.Equal(t, 8*time.Second, cfg.Thresholds.MaxLoadTime)
	assert.Equal(t, "https://shop.example.com", cfg.API.Origin)
	assert.Equal(t, "https://shop.example.com/home", cfg.API.Referer)
	assert.True(t, cfg.LLM.Enabled())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qa.env")
	require.NoError(t, os.WriteFile(path, []byte("TARGET_WEBSITE=https://from-file.example.org/\nQA_API_KEY=file-key\n"), 0o600))

	t.Setenv("QA_ENV_FILE", path)
	// Registered through t.Setenv so the values godotenv sets are restored.
	t.Setenv("TARGET_WEBSITE", "")
	t.Setenv("QA_API_KEY", "")
	os.Unsetenv("TARGET_WEBSITE")
	os.Unsetenv("QA_API_KEY")

	cfg := Load()

	assert.Equal(t, "https://from-file.example.org/", cfg.Target)
	assert.Equal(t, "file-key", cfg.API.Key)
}

func TestAPIConfig_Headers(t *testing.T) {
	api := APIConfig{Key: "k", Origin: "https://a.example", Referer: "https://a.example/"}
	h := api.Headers()

	assert.Equal(t, "application/json", h["Content-Type"])
	assert.Equal(t, "k", h["X-API-KEY"])
	assert.Equal(t, "https://a.example", h["Origin"])
	assert.Equal(t, DesktopUA, h["User-Agent"])
	assert.Len(t, h, 8)
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/a/b?c=d", "https://example.com"},
		{"http://host:8080/", "http://host:8080"},
		{"not a url/", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, OriginOf(tt.in))
		})
	}
}
