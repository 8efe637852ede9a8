package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/qaprobe/models"
)

func main() {
	apiURL := os.Getenv("QAPROBE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8090"
	}
	apiKey := os.Getenv("QAPROBE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "QAPROBE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"qaprobe",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	runTool := mcp.NewTool("run_site_check",
		mcp.WithDescription("Run a full QA pass against a website: browser navigation, clicks and form validation, API smoke test, performance, security headers, accessibility and responsiveness. Returns the issue summary, critical and high issues, and recommendations."),
		mcp.WithString("url",
			mcp.Description("Website to test. Defaults to the server's configured target."),
		),
		mcp.WithString("webhook_url",
			mcp.Description("Optional URL that receives a signed run.completed event"),
		),
	)
	s.AddTool(runTool, handleRunSiteCheck(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleRunSiteCheck(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := models.RunRequest{
			TargetWebsite: request.GetString("url", ""),
			WebhookURL:    request.GetString("webhook_url", ""),
		}

		body, status, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/runs", apiKey, payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}
		var created models.RunResponse
		if err := json.Unmarshal(body, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse run response: %v", err)), nil
		}
		if status != http.StatusAccepted || created.ID == "" {
			msg := fmt.Sprintf("run was not started (HTTP %d)", status)
			if created.Error != nil {
				msg = created.Error.Code + ": " + created.Error.Message
			}
			return mcp.NewToolResultError(msg), nil
		}

		result, err := pollRun(ctx, client, apiURL, apiKey, created.ID, 3*time.Second)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run %s failed: %v", created.ID, err)), nil
		}
		if result.Status == models.RunFailed {
			msg := "run failed"
			if result.Error != nil {
				msg = result.Error.Message
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText(formatResult(result)), nil
	}
}

// apiDo sends a request to the qaprobe API and returns the body and status.
func apiDo(ctx context.Context, client *http.Client, method, url, apiKey string, payload any) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// pollRun polls the run until it is completed or failed, or ctx is cancelled.
func pollRun(ctx context.Context, client *http.Client, apiURL, apiKey, id string, every time.Duration) (*models.RunStatusResponse, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, status, err := apiDo(ctx, client, http.MethodGet, apiURL+"/api/v1/runs/"+id, apiKey, nil)
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("poll returned HTTP %d: %s", status, strings.TrimSpace(string(body)))
			}
			var run models.RunStatusResponse
			if err := json.Unmarshal(body, &run); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if run.Status == models.RunCompleted || run.Status == models.RunFailed {
				return &run, nil
			}
		}
	}
}

func formatResult(run *models.RunStatusResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QA run %s for %s\n", run.ID, run.Target)
	if run.ExitCode != nil {
		fmt.Fprintf(&sb, "Exit code: %d\n", *run.ExitCode)
	}
	r := run.Report
	if r == nil {
		return sb.String()
	}

	s := r.Summary
	fmt.Fprintf(&sb, "Issues: %d total, %d critical, %d high, %d medium, %d low\n",
		s.TotalIssues, s.CriticalIssues, s.HighIssues, s.MediumIssues, s.LowIssues)

	n := 0
	for _, is := range r.Issues {
		if is.Severity != models.Critical && is.Severity != models.High {
			continue
		}
		if n == 0 {
			sb.WriteString("\nCritical and high issues:\n")
		}
		n++
		fmt.Fprintf(&sb, "%d. [%s] %s: %s\n", n, strings.ToUpper(string(is.Severity)), is.Category, is.Description)
	}

	if len(r.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&sb, "- %s (%s priority): %s\n", rec.Category, rec.Priority, rec.Description)
		}
	}
	if r.Analysis != "" {
		fmt.Fprintf(&sb, "\nAnalysis:\n%s\n", r.Analysis)
	}
	if len(run.Files) > 0 {
		fmt.Fprintf(&sb, "\nReport files: %s\n", strings.Join(run.Files, ", "))
	}
	return sb.String()
}
