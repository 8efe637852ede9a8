// Package functional exercises the target site through a real browser and
// smoke-tests the remote API endpoint.
package functional

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/use-agent/qaprobe/browser"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/httpprobe"
	"github.com/use-agent/qaprobe/models"
)

// Name is the tester name recorded on every issue in the report.
const Name = "FunctionalTester"

// Driver is the browser behavior the functional probes need.
// *browser.Session implements it.
type Driver interface {
	Open(ctx context.Context, url string) (string, error)
	Clickables(ctx context.Context) ([]browser.Clickable, error)
	Click(ctx context.Context, c browser.Clickable) (bool, error)
	Forms(ctx context.Context) ([]browser.Form, error)
	SubmitEmpty(ctx context.Context, form browser.Form, field browser.Field) (bool, error)
	Close() error
}

// LaunchFunc starts a browser session.
type LaunchFunc func(ctx context.Context) (Driver, error)

// APIClient posts JSON to the API under test. *httpprobe.Client implements it.
type APIClient interface {
	PostJSON(ctx context.Context, url string, payload any, headers map[string]string) (*httpprobe.Response, error)
}

// BrowserLauncher returns a LaunchFunc backed by go-rod.
func BrowserLauncher(cfg *config.Config) LaunchFunc {
	return func(ctx context.Context) (Driver, error) {
		s, err := browser.Launch(ctx, cfg.Browser, cfg.Timing)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Tester runs the functional probes.
type Tester struct {
	target string
	api    config.APIConfig
	launch LaunchFunc
	client APIClient
}

// New creates a Tester for target.
func New(target string, api config.APIConfig, launch LaunchFunc, client APIClient) *Tester {
	return &Tester{target: target, api: api, launch: launch, client: client}
}

// Run executes every functional probe in order and returns the issues found.
func (t *Tester) Run(ctx context.Context) []models.Issue {
	slog.Info("starting functional testing", "target", t.target)
	f := &models.Findings{}

	drv, err := t.launch(ctx)
	if err != nil {
		slog.Error("failed to set up browser", "error", err)
		f.Add(models.TypeError, "browser", models.High, "Failed to set up browser: %v", err)
		return f.Items()
	}
	defer func() {
		if err := drv.Close(); err != nil {
			slog.Warn("browser shutdown reported an error", "error", err)
		}
	}()

	if t.navigate(ctx, drv, f) {
		t.testClickables(ctx, drv, f)
		t.testForms(ctx, drv, f)
		t.testAPIEndpoint(ctx, f)
	} else {
		f.Add(models.TypeError, "navigation", models.Critical,
			"Cannot proceed with functional tests due to navigation failure")
	}

	slog.Info("functional testing completed", "issues", f.Len())
	return f.Items()
}

func (t *Tester) navigate(ctx context.Context, drv Driver, f *models.Findings) bool {
	slog.Info("navigating", "url", t.target)
	title, err := drv.Open(ctx, t.target)
	if err != nil {
		f.Add(models.TypeError, "navigation", models.Critical, "Navigation failed: %v", err)
		return false
	}

	lower := strings.ToLower(title)
	if strings.Contains(lower, "error") || strings.Contains(lower, "not found") {
		f.Add(models.TypeError, "navigation", models.Critical, "Failed to load website: %s", title)
		return false
	}

	slog.Info("page loaded", "title", title)
	return true
}

func (t *Tester) testClickables(ctx context.Context, drv Driver, f *models.Findings) {
	slog.Info("testing clickable elements")

	elements, err := drv.Clickables(ctx)
	if err != nil {
		f.Add(models.TypeError, "clickable_elements", models.High, "Error testing clickable elements: %v", err)
		return
	}

	for _, el := range elements {
		if ctx.Err() != nil {
			return
		}
		if !el.Visible || !el.Enabled {
			continue
		}
		navigated, err := drv.Click(ctx, el)
		if err != nil {
			f.Add(models.TypeBug, "clickable_elements", models.Medium,
				"Failed to click %s: '%s' - %v", el.Tag, el.Label, err)
			continue
		}
		if navigated {
			slog.Debug("click navigated", "tag", el.Tag, "label", el.Label)
		} else {
			slog.Debug("click succeeded", "tag", el.Tag, "label", el.Label)
		}
	}
}

func (t *Tester) testForms(ctx context.Context, drv Driver, f *models.Findings) {
	slog.Info("testing forms")

	forms, err := drv.Forms(ctx)
	if err != nil {
		f.Add(models.TypeError, "forms", models.High, "Error testing forms: %v", err)
		return
	}

	for _, form := range forms {
		if form.Err != nil {
			f.Add(models.TypeError, "forms", models.Medium, "Error testing form: %v", form.Err)
			continue
		}
		slog.Debug("testing form", "form", form.Name, "required_fields", len(form.Required))
		for _, field := range form.Required {
			if ctx.Err() != nil {
				return
			}
			validated, err := drv.SubmitEmpty(ctx, form, field)
			if err != nil {
				slog.Debug("skipping field", "form", form.Name, "field", field.Name, "error", err)
				continue
			}
			if validated {
				slog.Debug("form validation working", "form", form.Name, "field", field.Name)
				continue
			}
			f.Add(models.TypeBug, "form_validation", models.Medium,
				"Missing validation for required field: %s", field.Name)
		}
	}
}

func (t *Tester) testAPIEndpoint(ctx context.Context, f *models.Findings) {
	slog.Info("testing API endpoint", "endpoint", t.api.Endpoint)

	resp, err := t.client.PostJSON(ctx, t.api.Endpoint, t.api.Payload(), t.api.Headers())
	switch {
	case errors.Is(err, models.ErrUnreachable):
		f.Add(models.TypeError, "api", models.Critical, "API endpoint is not accessible (Connection refused)")
		return
	case err != nil:
		f.Add(models.TypeError, "api", models.High, "API testing failed: %v", err)
		return
	}

	if resp.StatusCode != http.StatusOK {
		f.Add(models.TypeBug, "api", models.High, "API endpoint returned status code: %d", resp.StatusCode)
		return
	}
	slog.Info("API endpoint responded successfully", "response", describeBody(resp.Body))
}

// describeBody returns compact JSON when body is JSON, else the raw text,
// truncated for logging.
func describeBody(body []byte) string {
	const limit = 2000
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		if compact, err := json.Marshal(v); err == nil {
			body = compact
		}
	}
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
