package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/models"
)

func testReport() *models.Report {
	return &models.Report{
		TestInfo: models.TestInfo{TargetWebsite: "https://site.example/"},
		Summary:  models.Summary{TotalIssues: 2, CriticalIssues: 1, LowIssues: 1},
		Issues: []models.ReportedIssue{
			{Issue: models.Issue{Category: "aria_attributes", Description: "No ARIA", Severity: models.Low}, TestCategory: models.CategoryNonFunctional},
			{Issue: models.Issue{Category: "navigation", Description: "Navigation failed", Severity: models.Critical}, TestCategory: models.CategoryFunctional},
		},
	}
}

func TestBuildPrompt_SortsBySeverity(t *testing.T) {
	prompt := BuildPrompt(testReport())

	assert.Contains(t, prompt, "2 total (1 critical, 0 high, 0 medium, 1 low)")
	critical := strings.Index(prompt, "[critical] functional/navigation")
	low := strings.Index(prompt, "[low] non_functional/aria_attributes")
	require.NotEqual(t, -1, critical)
	require.NotEqual(t, -1, low)
	assert.Less(t, critical, low)
}

func TestAnalyze(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"  Fix navigation first.  "}}]}`))
	}))
	defer srv.Close()

	a := NewAnalyzer(config.LLMConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1/"}, nil)
	text, err := a.Analyze(context.Background(), testReport())

	require.NoError(t, err)
	assert.Equal(t, "Fix navigation first.", text)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Navigation failed")
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, models.ErrCodeLLMAuthFailure},
		{"rate limited", http.StatusTooManyRequests, `{}`, models.ErrCodeLLMRateLimited},
		{"server error", http.StatusInternalServerError, `oops`, models.ErrCodeLLMFailure},
		{"no choices", http.StatusOK, `{"choices":[]}`, models.ErrCodeLLMFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a := NewAnalyzer(config.LLMConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
			_, err := a.Analyze(context.Background(), testReport())

			var pe *models.ProbeError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantCode, pe.Code)
		})
	}
}
