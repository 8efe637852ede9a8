package nonfunctional

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/models"
)

type device struct {
	name      string
	userAgent string
}

// devices are probed in this order. Desktop comes first so its layout is the
// baseline the others are compared to.
var devices = []device{
	{"desktop", config.DesktopUA},
	{"mobile", config.MobileUA},
	{"tablet", config.TabletUA},
}

func (t *Tester) testResponsiveness(ctx context.Context, f *models.Findings) {
	slog.Info("testing responsiveness")

	var baseline uint64
	haveBaseline := false
	for _, d := range devices {
		resp, err := t.client.Get(ctx, t.target, map[string]string{"User-Agent": d.userAgent})
		if err != nil {
			f.Add(models.TypeResponsive, "device_compatibility", models.Medium,
				"Failed to test %s responsiveness: %v", d.name, err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			f.Add(models.TypeResponsive, "device_compatibility", models.Medium,
				"Website not responding properly for %s view (Status: %d)", d.name, resp.StatusCode)
			continue
		}
		slog.Info("device view ok", "device", d.name)

		fp := layoutFingerprint(resp.Body)
		if d.name == "desktop" {
			baseline, haveBaseline = fp, true
			continue
		}
		if !haveBaseline || t.limits.LayoutDistance <= 0 {
			continue
		}
		if dist := layoutDistance(baseline, fp); dist > t.limits.LayoutDistance {
			slog.Debug("device layout diverges from desktop",
				"device", d.name, "distance", dist, "threshold", t.limits.LayoutDistance)
		}
	}
}
