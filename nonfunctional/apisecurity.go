package nonfunctional

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/use-agent/qaprobe/models"
)

const scriptTag = "<script>"

// malformedPayload carries a script injection and an unexpected field.
var malformedPayload = map[string]string{
	"prUrl":         "<script>alert('XSS')</script>",
	"invalid_field": "test",
}

func (t *Tester) testAPISecurity(ctx context.Context, f *models.Findings) {
	slog.Info("testing API security", "endpoint", t.api.Endpoint)

	resp, err := t.client.PostJSON(ctx, t.api.Endpoint, malformedPayload, t.api.Headers())
	switch {
	case errors.Is(err, models.ErrUnreachable):
		slog.Warn("API endpoint not accessible for security testing", "error", err)
		return
	case err != nil:
		f.Add(models.TypeError, "api_security", models.Medium, "API security testing failed: %v", err)
		return
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		slog.Info("API properly rejects malformed input")
	case http.StatusOK:
		var decoded any
		if err := json.Unmarshal(resp.Body, &decoded); err != nil {
			slog.Debug("API security response is not JSON", "error", err)
			return
		}
		if containsScript(decoded) {
			f.Add(models.TypeSecurity, "xss", models.High,
				"API may be vulnerable to XSS attacks (script tags not sanitized)")
		}
	default:
		f.Add(models.TypeSecurity, "input_validation", models.Medium,
			"API returned unexpected status code for malformed input: %d", resp.StatusCode)
	}
}

// containsScript walks a decoded JSON value and reports whether any string
// value or object key contains an opening script tag.
func containsScript(v any) bool {
	switch x := v.(type) {
	case string:
		return strings.Contains(x, scriptTag)
	case []any:
		for _, item := range x {
			if containsScript(item) {
				return true
			}
		}
	case map[string]any:
		for k, item := range x {
			if strings.Contains(k, scriptTag) || containsScript(item) {
				return true
			}
		}
	}
	return false
}
