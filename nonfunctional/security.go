package nonfunctional

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/use-agent/qaprobe/models"
)

// securityHeaders are checked in this order.
var securityHeaders = []struct {
	name    string
	message string
}{
	{"X-Frame-Options", "Missing X-Frame-Options header (clickjacking protection)"},
	{"X-Content-Type-Options", "Missing X-Content-Type-Options header (MIME sniffing protection)"},
	{"X-XSS-Protection", "Missing X-XSS-Protection header (XSS protection)"},
	{"Strict-Transport-Security", "Missing HSTS header (HTTPS enforcement)"},
	{"Content-Security-Policy", "Missing CSP header (content security policy)"},
}

func (t *Tester) securityScan(ctx context.Context, f *models.Findings) {
	slog.Info("performing security scan")

	resp, err := t.client.Get(ctx, t.target, nil)
	if err != nil {
		f.Add(models.TypeError, "security", models.Medium, "Security scan failed: %v", err)
		return
	}

	for _, h := range securityHeaders {
		if _, ok := resp.Header[http.CanonicalHeaderKey(h.name)]; !ok {
			f.Add(models.TypeSecurity, "missing_security_headers", models.Medium, "%s", h.message)
		}
	}

	if !strings.HasPrefix(t.target, "https://") {
		f.Add(models.TypeSecurity, "https", models.High,
			"Website is not using HTTPS (insecure connection)")
	}

	if disclosesDatabaseError(resp.Body) {
		f.Add(models.TypeSecurity, "information_disclosure", models.High,
			"Potential database error information disclosure")
	}
}

// disclosesDatabaseError reports whether body mentions an error together
// with SQL or a database, case-insensitively.
func disclosesDatabaseError(body []byte) bool {
	lower := bytes.ToLower(body)
	if !bytes.Contains(lower, []byte("error")) {
		return false
	}
	return bytes.Contains(lower, []byte("sql")) || bytes.Contains(lower, []byte("database"))
}
