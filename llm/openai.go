// Package llm asks an OpenAI-compatible chat endpoint for a short narrative
// analysis of a finished report.
package llm

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/models"
)

// maxPromptIssues caps how many issues are included in the prompt.
const maxPromptIssues = 15

const systemPrompt = `You are a senior QA engineer reviewing an automated website test report.
Write a short analysis (at most 200 words, plain text, no markdown) that:
- states the overall quality of the site in one sentence,
- names the most urgent problems and their likely user impact,
- suggests what to fix first.
Base every statement on the findings provided; do not invent issues.`

// Analyzer produces narrative analyses. It is safe for concurrent use.
type Analyzer struct {
	httpClient *http.Client
	cfg        config.LLMConfig
}

// NewAnalyzer creates an Analyzer. Pass a nil httpClient to use a client with
// a 60s timeout.
func NewAnalyzer(cfg config.LLMConfig, httpClient *http.Client) *Analyzer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Analyzer{httpClient: httpClient, cfg: cfg}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze returns a narrative summary of r.
func (a *Analyzer) Analyze(ctx context.Context, r *models.Report) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(r)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", models.NewProbeError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewProbeError(models.ErrCodeLLMFailure, "failed to read LLM response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewProbeError(models.ErrCodeLLMFailure, "failed to parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", models.NewProbeError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// BuildPrompt renders the summary and the most severe issues of r.
func BuildPrompt(r *models.Report) string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "Target: %s\n", r.TestInfo.TargetWebsite)
	fmt.Fprintf(&b, "Issues: %d total (%d critical, %d high, %d medium, %d low)\n",
		s.TotalIssues, s.CriticalIssues, s.HighIssues, s.MediumIssues, s.LowIssues)

	issues := slices.Clone(r.Issues)
	slices.SortStableFunc(issues, func(a, b models.ReportedIssue) int {
		return cmp.Compare(b.Severity.Score(), a.Severity.Score())
	})
	if len(issues) > maxPromptIssues {
		issues = issues[:maxPromptIssues]
	}
	if len(issues) > 0 {
		b.WriteString("\nFindings:\n")
	}
	for _, is := range issues {
		fmt.Fprintf(&b, "- [%s] %s/%s: %s\n", is.Severity, is.TestCategory, is.Category, is.Description)
	}
	return b.String()
}

func classifyLLMError(statusCode int, body []byte) *models.ProbeError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewProbeError(models.ErrCodeLLMAuthFailure, msg, nil)
	case http.StatusTooManyRequests:
		return models.NewProbeError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewProbeError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
	}
}
