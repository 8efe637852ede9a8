// Package nonfunctional runs the HTTP-level probes: performance, security
// headers, accessibility heuristics, device responsiveness and API input
// handling.
package nonfunctional

import (
	"context"
	"log/slog"

	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/httpprobe"
	"github.com/use-agent/qaprobe/models"
)

// Name is the tester name recorded on every issue in the report.
const Name = "NonFunctionalTester"

// Fetcher performs the probe requests. *httpprobe.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (*httpprobe.Response, error)
	PostJSON(ctx context.Context, url string, payload any, headers map[string]string) (*httpprobe.Response, error)
}

// Tester runs the non-functional probes against a single target.
type Tester struct {
	target string
	api    config.APIConfig
	limits config.ThresholdConfig
	client Fetcher
}

// New creates a Tester.
func New(target string, api config.APIConfig, limits config.ThresholdConfig, client Fetcher) *Tester {
	return &Tester{target: target, api: api, limits: limits, client: client}
}

// Run executes every probe in a fixed order and returns the issues found.
// A probe that fails records an issue and the remaining probes still run.
func (t *Tester) Run(ctx context.Context) []models.Issue {
	slog.Info("starting non-functional testing", "target", t.target)
	f := &models.Findings{}

	probes := []struct {
		name string
		run  func(context.Context, *models.Findings)
	}{
		{"performance", t.measurePerformance},
		{"security", t.securityScan},
		{"accessibility", t.accessibilityAudit},
		{"responsiveness", t.testResponsiveness},
		{"api_security", t.testAPISecurity},
	}
	for _, p := range probes {
		if err := ctx.Err(); err != nil {
			slog.Warn("non-functional testing interrupted", "probe", p.name, "error", err)
			break
		}
		before := f.Len()
		p.run(ctx, f)
		slog.Debug("probe finished", "probe", p.name, "issues", f.Len()-before)
	}

	slog.Info("non-functional testing completed", "issues", f.Len())
	return f.Items()
}
