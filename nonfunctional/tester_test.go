package nonfunctional

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/httpprobe"
	"github.com/use-agent/qaprobe/models"
)

const accessiblePage = `<!doctype html><html><head><title>Home</title></head><body>
<h1>Title</h1><h2>Section</h2>
<img src="a.png" alt="Logo">
<form><label for="email">Email</label><input id="email" type="email"><input type="submit"></form>
<nav aria-label="main"></nav>
</body></html>`

func defaultLimits() config.ThresholdConfig {
	return config.ThresholdConfig{
		MaxLoadTime:     5 * time.Second,
		MaxResponseTime: 2 * time.Second,
		MaxPageSize:     1024 * 1024,
		LayoutDistance:  24,
	}
}

func secureHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-XSS-Protection", "1; mode=block")
	w.Header().Set("Strict-Transport-Security", "max-age=63072000")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
}

func newTestClient() *httpprobe.Client {
	return httpprobe.New(config.HTTPConfig{Timeout: 5 * time.Second, InsecureTLS: true})
}

func categories(issues []models.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Category
	}
	return out
}

func TestRun_HealthySiteOnlyFlagsPlainHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		secureHeaders(w)
		w.Write([]byte(accessiblePage))
	})
	mux.HandleFunc("/api/v1/review", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := config.APIConfig{Endpoint: srv.URL + "/api/v1/review"}
	issues := New(srv.URL+"/", api, defaultLimits(), newTestClient()).Run(context.Background())

	require.Len(t, issues, 1)
	assert.Equal(t, models.Issue{
		Type:        models.TypeSecurity,
		Category:    "https",
		Description: "Website is not using HTTPS (insecure connection)",
		Severity:    models.High,
	}, issues[0])
}

func TestSecurityScan_MissingHeadersInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Write([]byte("<p>Database error: SQL syntax near 'x'</p>"))
	}))
	defer srv.Close()

	f := &models.Findings{}
	New(srv.URL, config.APIConfig{}, defaultLimits(), newTestClient()).securityScan(context.Background(), f)
	issues := f.Items()

	require.Len(t, issues, 6)
	assert.Equal(t, "Missing X-Frame-Options header (clickjacking protection)", issues[0].Description)
	assert.Equal(t, "Missing X-XSS-Protection header (XSS protection)", issues[1].Description)
	assert.Equal(t, "Missing HSTS header (HTTPS enforcement)", issues[2].Description)
	assert.Equal(t, "Missing CSP header (content security policy)", issues[3].Description)
	assert.Equal(t, "https", issues[4].Category)
	assert.Equal(t, "information_disclosure", issues[5].Category)
	assert.Equal(t, models.High, issues[5].Severity)
}

func TestDisclosesDatabaseError(t *testing.T) {
	assert.True(t, disclosesDatabaseError([]byte("ERROR in Database layer")))
	assert.True(t, disclosesDatabaseError([]byte("sql error")))
	assert.False(t, disclosesDatabaseError([]byte("database maintenance tonight")))
	assert.False(t, disclosesDatabaseError([]byte("an error occurred")))
}

func TestMeasurePerformance_Thresholds(t *testing.T) {
	big := strings.Repeat("a", 2*1024*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(big))
	}))
	defer srv.Close()

	limits := defaultLimits()
	limits.MaxLoadTime = 10 * time.Millisecond
	limits.MaxResponseTime = 10 * time.Millisecond

	f := &models.Findings{}
	New(srv.URL, config.APIConfig{}, limits, newTestClient()).measurePerformance(context.Background(), f)
	issues := f.Items()

	require.Len(t, issues, 3)
	assert.Equal(t, []string{"load_time", "response_time", "page_size"}, categories(issues))
	assert.Equal(t, models.High, issues[0].Severity)
	assert.Equal(t, models.Medium, issues[1].Severity)
	assert.Equal(t, "Page size is too large: 2.00 MB", issues[2].Description)
}

type stubFetcher struct {
	get  func(headers map[string]string) (*httpprobe.Response, error)
	post func(payload any) (*httpprobe.Response, error)
}

func (s stubFetcher) Get(_ context.Context, _ string, headers map[string]string) (*httpprobe.Response, error) {
	return s.get(headers)
}

func (s stubFetcher) PostJSON(_ context.Context, _ string, payload any, _ map[string]string) (*httpprobe.Response, error) {
	return s.post(payload)
}

func TestMeasurePerformance_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
		wantCat  string
		wantSev  models.Severity
	}{
		{"timeout", models.NewProbeError(models.ErrCodeTimeout, "GET", context.DeadlineExceeded), models.TypePerformance, "timeout", models.Critical},
		{"other", errors.New("tls handshake failure"), models.TypeError, "performance", models.High},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch := stubFetcher{get: func(map[string]string) (*httpprobe.Response, error) { return nil, tt.err }}
			f := &models.Findings{}
			New("https://site.example", config.APIConfig{}, defaultLimits(), fetch).measurePerformance(context.Background(), f)

			require.Equal(t, 1, f.Len())
			is := f.Items()[0]
			assert.Equal(t, tt.wantType, is.Type)
			assert.Equal(t, tt.wantCat, is.Category)
			assert.Equal(t, tt.wantSev, is.Severity)
		})
	}
}

func TestAccessibilityAudit(t *testing.T) {
	page := `<html><body>
<h1>A</h1><h3>skip</h3><h5>skip again</h5>
<img src="1.png"><img src="2.png" alt=""><img src="3.png" alt="ok">
<form>
  <input id="name" type="text">
  <input id="q">
  <input id="labelled"><label for="labelled">L</label>
  <input id="go" type="submit">
  <input id="tok" type="HIDDEN">
  <input type="text">
</form>
<input id="outside">
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	f := &models.Findings{}
	New(srv.URL, config.APIConfig{}, defaultLimits(), newTestClient()).accessibilityAudit(context.Background(), f)
	issues := f.Items()

	require.Len(t, issues, 5)
	assert.Equal(t, "Found 2 images without alt text", issues[0].Description)
	assert.Equal(t, "heading_structure", issues[1].Category)
	assert.Equal(t, models.Low, issues[1].Severity)
	assert.Equal(t, "Input field with id 'name' lacks proper label", issues[2].Description)
	assert.Equal(t, "Input field with id 'q' lacks proper label", issues[3].Description)
	assert.Equal(t, "aria_attributes", issues[4].Category)
}

func TestAccessibilityAudit_FetchFailure(t *testing.T) {
	fetch := stubFetcher{get: func(map[string]string) (*httpprobe.Response, error) {
		return nil, errors.New("boom")
	}}
	f := &models.Findings{}
	New("https://site.example", config.APIConfig{}, defaultLimits(), fetch).accessibilityAudit(context.Background(), f)

	require.Equal(t, 1, f.Len())
	assert.Equal(t, "Accessibility audit failed: boom", f.Items()[0].Description)
	assert.Equal(t, models.Medium, f.Items()[0].Severity)
}

func TestTestResponsiveness(t *testing.T) {
	fetch := stubFetcher{get: func(headers map[string]string) (*httpprobe.Response, error) {
		switch headers["User-Agent"] {
		case config.MobileUA:
			return &httpprobe.Response{StatusCode: http.StatusServiceUnavailable}, nil
		case config.TabletUA:
			return nil, errors.New("connection reset")
		}
		return &httpprobe.Response{StatusCode: http.StatusOK, Body: []byte(accessiblePage)}, nil
	}}

	f := &models.Findings{}
	New("https://site.example", config.APIConfig{}, defaultLimits(), fetch).testResponsiveness(context.Background(), f)
	issues := f.Items()

	require.Len(t, issues, 2)
	assert.Equal(t, "Website not responding properly for mobile view (Status: 503)", issues[0].Description)
	assert.Equal(t, "Failed to test tablet responsiveness: connection reset", issues[1].Description)
	for _, is := range issues {
		assert.Equal(t, models.TypeResponsive, is.Type)
		assert.Equal(t, "device_compatibility", is.Category)
		assert.Equal(t, models.Medium, is.Severity)
	}
}

func TestTestAPISecurity(t *testing.T) {
	unreachable := models.NewProbeError(models.ErrCodeUnreachable, "POST", errors.New("connection refused"))
	tests := []struct {
		name    string
		resp    *httpprobe.Response
		err     error
		wantCat string
	}{
		{"rejected", &httpprobe.Response{StatusCode: http.StatusBadRequest}, nil, ""},
		{"reflected script", &httpprobe.Response{StatusCode: http.StatusOK, Body: []byte(`{"echo":{"prUrl":"<script>alert('XSS')</script>"}}`)}, nil, "xss"},
		{"sanitized", &httpprobe.Response{StatusCode: http.StatusOK, Body: []byte(`{"status":"queued"}`)}, nil, ""},
		{"not json", &httpprobe.Response{StatusCode: http.StatusOK, Body: []byte(`<script>`)}, nil, ""},
		{"unexpected status", &httpprobe.Response{StatusCode: http.StatusInternalServerError}, nil, "input_validation"},
		{"unreachable", nil, unreachable, ""},
		{"other failure", nil, errors.New("tls: bad record"), "api_security"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent any
			fetch := stubFetcher{post: func(payload any) (*httpprobe.Response, error) {
				sent = payload
				return tt.resp, tt.err
			}}
			f := &models.Findings{}
			New("https://site.example", config.APIConfig{Endpoint: "https://api.example"}, defaultLimits(), fetch).
				testAPISecurity(context.Background(), f)

			assert.Equal(t, malformedPayload, sent)
			if tt.wantCat == "" {
				assert.Zero(t, f.Len())
				return
			}
			require.Equal(t, 1, f.Len())
			assert.Equal(t, tt.wantCat, f.Items()[0].Category)
		})
	}
}

func TestContainsScript(t *testing.T) {
	assert.True(t, containsScript([]any{"a", map[string]any{"<script>": 1.0}}))
	assert.True(t, containsScript("x <script> y"))
	assert.False(t, containsScript(map[string]any{"a": []any{"b", 2.0, nil}}))
}

func TestLayoutFingerprint(t *testing.T) {
	a := layoutFingerprint([]byte(accessiblePage))
	b := layoutFingerprint([]byte(strings.ReplaceAll(accessiblePage, "Title", "Other words")))
	assert.Equal(t, a, b)
	assert.Zero(t, layoutDistance(a, b))
	assert.Zero(t, layoutFingerprint(nil))

	c := layoutFingerprint([]byte(`<table><tr><td></td></tr></table><ul><li></li><li></li></ul>`))
	assert.Positive(t, layoutDistance(a, c))
}
