// Package runner executes one full QA run: functional probes, then
// non-functional probes, then report synthesis, optional analysis and
// webhook delivery.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/functional"
	"github.com/use-agent/qaprobe/httpprobe"
	"github.com/use-agent/qaprobe/llm"
	"github.com/use-agent/qaprobe/models"
	"github.com/use-agent/qaprobe/nonfunctional"
	"github.com/use-agent/qaprobe/report"
	"github.com/use-agent/qaprobe/webhook"
)

// Tester is a probe collection.
type Tester interface {
	Run(ctx context.Context) []models.Issue
}

// TesterFactory builds a tester for a target.
type TesterFactory func(target string) Tester

// Analyzer writes a narrative analysis of a report.
type Analyzer interface {
	Analyze(ctx context.Context, r *models.Report) (string, error)
}

// Job describes a single run.
type Job struct {
	// ID identifies the run in webhook events. Empty for CLI runs.
	ID     string
	Target string

	// WebhookURL overrides the configured webhook endpoint.
	WebhookURL string

	// AsyncWebhook delivers in the background instead of blocking.
	AsyncWebhook bool
}

// Runner composes the testers and report pipeline.
type Runner struct {
	functional    TesterFactory
	nonFunctional TesterFactory
	analyzer      Analyzer
	notifier      *webhook.Notifier
}

// Option configures a Runner.
type Option func(*Runner)

// WithTesters replaces the tester factories.
func WithTesters(functional, nonFunctional TesterFactory) Option {
	return func(r *Runner) {
		r.functional = functional
		r.nonFunctional = nonFunctional
	}
}

// WithAnalyzer sets or clears the analyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(r *Runner) { r.analyzer = a }
}

// WithNotifier sets or clears the default webhook notifier.
func WithNotifier(n *webhook.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// New creates a Runner wired to the browser, the probe HTTP client, and,
// when configured, the LLM and webhook.
func New(cfg *config.Config, opts ...Option) *Runner {
	client := httpprobe.New(cfg.HTTP)
	launch := functional.BrowserLauncher(cfg)

	r := &Runner{
		functional: func(target string) Tester {
			return functional.New(target, apiFor(cfg, target), launch, client)
		},
		nonFunctional: func(target string) Tester {
			return nonfunctional.New(target, apiFor(cfg, target), cfg.Thresholds, client)
		},
		notifier: webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret),
	}
	if cfg.LLM.Enabled() {
		r.analyzer = llm.NewAnalyzer(cfg.LLM, nil)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// apiFor keeps explicitly configured Origin and Referer, and otherwise
// derives them from target.
func apiFor(cfg *config.Config, target string) config.APIConfig {
	api := cfg.API
	if target == cfg.Target {
		return api
	}
	if api.Origin == config.OriginOf(cfg.Target) {
		api.Origin = config.OriginOf(target)
	}
	if api.Referer == cfg.Target {
		api.Referer = target
	}
	return api
}

// Run executes a run against target.
func (r *Runner) Run(ctx context.Context, target string) (*models.Report, error) {
	return r.Execute(ctx, Job{Target: target})
}

// Execute runs job. The probes always run to completion unless ctx is
// cancelled, in which case the context error is returned and no report is
// produced. Analysis and webhook failures are logged, never returned.
func (r *Runner) Execute(ctx context.Context, job Job) (*models.Report, error) {
	start := time.Now()
	slog.Info("qa run starting", "target", job.Target, "run_id", job.ID)

	functionalIssues := r.functional(job.Target).Run(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("runner: functional testing: %w", err)
	}
	nonFunctionalIssues := r.nonFunctional(job.Target).Run(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("runner: non-functional testing: %w", err)
	}

	rep := report.NewGenerator(job.Target).Generate(functionalIssues, nonFunctionalIssues)

	if r.analyzer != nil {
		analysis, err := r.analyzer.Analyze(ctx, rep)
		if err != nil {
			slog.Warn("report analysis failed", "error", err)
		} else {
			rep.Analysis = analysis
		}
	}

	r.notify(ctx, job, rep)

	slog.Info("qa run finished",
		"target", job.Target,
		"run_id", job.ID,
		"total_issues", rep.Summary.TotalIssues,
		"exit_code", report.ExitCode(rep.Summary),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return rep, nil
}

func (r *Runner) notify(ctx context.Context, job Job, rep *models.Report) {
	n := r.notifier.WithURL(job.WebhookURL)
	if n == nil {
		return
	}
	event := webhook.NewEvent(webhook.EventRunCompleted, job.ID, map[string]any{
		"target_website": job.Target,
		"exit_code":      report.ExitCode(rep.Summary),
		"summary":        rep.Summary,
		"report":         rep,
	})
	if job.AsyncWebhook {
		n.DeliverAsync(event)
		return
	}
	if err := n.DeliverWithRetry(ctx, event); err != nil {
		slog.Warn("webhook not delivered", "error", err)
	}
}
