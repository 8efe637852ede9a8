// Package httpprobe is the HTTP client shared by the API and non-functional
// probes. HTTPS connections present a Chrome TLS fingerprint so targets behind
// bot filters answer the way they would answer a real browser.
package httpprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/models"
)

// maxBody caps how much of a response body is read.
const maxBody = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Response is a fully read HTTP response with timing information.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Elapsed is the time until the response headers arrived.
	Elapsed time.Duration

	// Total is the time until the body was fully read.
	Total time.Duration
}

// Client performs probe requests. It is safe for concurrent use.
type Client struct {
	client  *http.Client
	timeout time.Duration
}

// New creates a Client from the HTTP settings.
func New(cfg config.HTTPConfig) *Client {
	insecure := cfg.InsecureTLS
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, insecure)
		},
		ForceAttemptHTTP2: false,
	}
	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		timeout: timeout,
	}
}

// Get fetches targetURL with the given extra headers.
func (c *Client) Get(ctx context.Context, targetURL string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, targetURL, nil, headers)
}

// PostJSON posts payload encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, targetURL string, payload any, headers map[string]string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("httpprobe: marshal payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, targetURL, body, headers)
}

func (c *Client) do(ctx context.Context, method, targetURL string, body []byte, headers map[string]string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	var connected atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	})

	req, err := http.NewRequestWithContext(ctx, method, targetURL, reader)
	if err != nil {
		return nil, models.NewProbeError(models.ErrCodeInvalidInput, "build request", err)
	}
	req.Header.Set("User-Agent", config.DesktopUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(err, method+" "+targetURL, connected.Load())
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classify(err, "read body of "+targetURL, true)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Elapsed:    elapsed,
		Total:      time.Since(start),
	}, nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr string, insecure bool) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: insecure,
	}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("httpprobe: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// classify wraps transport errors into ProbeErrors so probes can branch on
// ErrTimeout and ErrUnreachable. A timeout before any connection was
// established counts as unreachable.
func classify(err error, msg string, connected bool) *models.ProbeError {
	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	switch {
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return models.NewProbeError(models.ErrCodeUnreachable, msg, err)
	case timedOut && !connected:
		return models.NewProbeError(models.ErrCodeUnreachable, msg, err)
	case timedOut:
		return models.NewProbeError(models.ErrCodeTimeout, msg, err)
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return models.NewProbeError(models.ErrCodeUnreachable, msg, err)
	default:
		return models.NewProbeError(models.ErrCodeInternal, msg, err)
	}
}
