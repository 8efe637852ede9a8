package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/qaprobe/config"
	"github.com/use-agent/qaprobe/models"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per identity.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	cfg      config.RateLimitConfig
}

func (s *limiterSet) get(identity string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.limiters[identity]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst),
		}
		s.limiters[identity] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (s *limiterSet) evictIdle(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.limiters, id)
		}
	}
}

// RateLimit returns per-identity token-bucket rate limiting middleware. The
// identity is the caller set by Auth, or the client IP without auth.
// Buckets unused for an hour are evicted every five minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	set := &limiterSet{limiters: make(map[string]*limiterEntry), cfg: cfg}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			set.evictIdle(time.Now().Add(-1 * time.Hour))
		}
	}()

	return func(c *gin.Context) {
		identity := Caller(c)
		if identity == "" {
			identity = "ip:" + c.ClientIP()
		}

		lim := set.get(identity)
		if !lim.Allow() {
			r := lim.Reserve()
			if d := r.Delay(); r.OK() && d > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			}
			r.Cancel()
			abort(c, http.StatusTooManyRequests, models.NewProbeError(models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down", nil))
			return
		}
		c.Next()
	}
}
