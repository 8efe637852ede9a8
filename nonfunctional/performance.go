package nonfunctional

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/qaprobe/models"
)

const megabyte = 1024 * 1024

func (t *Tester) measurePerformance(ctx context.Context, f *models.Findings) {
	slog.Info("measuring performance")

	resp, err := t.client.Get(ctx, t.target, nil)
	if err != nil {
		if errors.Is(err, models.ErrTimeout) {
			f.Add(models.TypePerformance, "timeout", models.Critical,
				"Website took too long to respond (timeout)")
			return
		}
		f.Add(models.TypeError, "performance", models.High, "Performance testing failed: %v", err)
		return
	}

	load := resp.Total.Seconds()
	response := resp.Elapsed.Seconds()
	size := int64(len(resp.Body))
	slog.Info("performance metrics",
		"load_time_s", load,
		"response_time_s", response,
		"page_size_kb", float64(size)/1024,
	)

	if resp.Total > t.limits.MaxLoadTime {
		f.Add(models.TypePerformance, "load_time", models.High,
			"Page load time is too slow: %.2f seconds", load)
	}
	if resp.Elapsed > t.limits.MaxResponseTime {
		f.Add(models.TypePerformance, "response_time", models.Medium,
			"Server response time is slow: %.2f seconds", response)
	}
	if size > t.limits.MaxPageSize {
		f.Add(models.TypePerformance, "page_size", models.Medium,
			"Page size is too large: %.2f MB", float64(size)/megabyte)
	}
}
