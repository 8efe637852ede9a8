// Package browser drives a headless Chrome through go-rod for the functional
// probes. A Session owns one browser process and one tab.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/models"
	"github.com/ysmood/gson"
)

// Session is a single-tab browser session. It is not safe for concurrent use.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	cfg      config.BrowserConfig
	timing   config.TimingConfig
}

// Launch starts Chrome and opens the tab every later call operates on.
func Launch(ctx context.Context, cfg config.BrowserConfig, timing config.TimingConfig) (*Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("window-size"), strconv.Itoa(cfg.WindowWidth)+","+strconv.Itoa(cfg.WindowHeight))
	if cfg.Stealth {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewProbeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, models.NewProbeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, models.NewProbeError(models.ErrCodeBrowserCrash, "failed to open tab", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  cfg.WindowWidth,
		Height: cfg.WindowHeight,
	}); err != nil {
		slog.Warn("failed to set viewport", "error", err)
	}

	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": "en-US,en;q=0.9"}),
	}).Call(page); err != nil {
		slog.Warn("failed to set extra headers", "error", err)
	}

	return &Session{
		launcher: l,
		browser:  b,
		page:     page,
		cfg:      cfg,
		timing:   timing,
	}, nil
}

// Close shuts the tab and the browser process down.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	s.launcher.Cleanup()
	return errors.Join(errs...)
}

// Open navigates to url, lets the page settle, and returns its title.
func (s *Session) Open(ctx context.Context, url string) (string, error) {
	p := s.bind(ctx)
	if err := p.Navigate(url); err != nil {
		return "", categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("load event did not fire, proceeding with current DOM", "error", err)
	}
	if err := sleepCtx(ctx, s.timing.NavSettle); err != nil {
		return "", categorizeError(err, "navigation interrupted")
	}
	info, err := p.Info()
	if err != nil {
		return "", categorizeError(err, "failed to read page info")
	}
	return info.Title, nil
}

// CurrentURL returns the tab's location.
func (s *Session) CurrentURL(ctx context.Context) string {
	return evalStringOrEmpty(s.bind(ctx), `() => window.location.href`)
}

// bind returns the page bound to ctx with the configured operation timeout.
func (s *Session) bind(ctx context.Context) *rod.Page {
	p := s.page.Context(ctx)
	if s.cfg.Timeout > 0 {
		p = p.Timeout(s.cfg.Timeout)
	}
	return p
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// categorizeError wraps raw errors into typed ProbeErrors.
func categorizeError(err error, msg string) *models.ProbeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewProbeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewProbeError(models.ErrCodeTimeout, "operation canceled", err)
	default:
		return models.NewProbeError(models.ErrCodeNavigation, msg, err)
	}
}
