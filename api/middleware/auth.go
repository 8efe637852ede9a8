package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/qaprobe/models"
)

// callerContextKey holds the authenticated caller identity. The identity is
// derived from the key digest so the raw key never reaches logs or limiter
// maps.
const callerContextKey = "qaprobe.caller"

// Auth returns API-key authentication middleware accepting either
// X-API-Key: <key> or Authorization: Bearer <key>.
// If apiKeys is empty, the middleware is a no-op (open access).
func Auth(apiKeys []string) gin.HandlerFunc {
	var digests [][sha256.Size]byte
	for _, k := range apiKeys {
		if k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}
	if len(digests) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			c.Header("WWW-Authenticate", `Bearer realm="qaprobe"`)
			abort(c, http.StatusUnauthorized, models.NewProbeError(models.ErrCodeUnauthorized,
				"missing API key: provide X-API-Key header or Authorization: Bearer <key>", nil))
			return
		}

		sum := sha256.Sum256([]byte(key))
		if !knownDigest(digests, sum) {
			c.Header("WWW-Authenticate", `Bearer realm="qaprobe", error="invalid_token"`)
			abort(c, http.StatusUnauthorized, models.NewProbeError(models.ErrCodeUnauthorized,
				"invalid API key", nil))
			return
		}

		c.Set(callerContextKey, callerID(sum))
		c.Next()
	}
}

// Caller returns the identity Auth stored for the request, or "".
func Caller(c *gin.Context) string {
	return c.GetString(callerContextKey)
}

// knownDigest compares against every configured digest so the time taken
// does not depend on which key matched.
func knownDigest(digests [][sha256.Size]byte, sum [sha256.Size]byte) bool {
	found := 0
	for i := range digests {
		found |= subtle.ConstantTimeCompare(digests[i][:], sum[:])
	}
	return found == 1
}

func callerID(sum [sha256.Size]byte) string {
	return "key:" + hex.EncodeToString(sum[:6])
}

func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// abort ends the request with the error envelope used by every qaprobe
// endpoint.
func abort(c *gin.Context, status int, pe *models.ProbeError) {
	slog.Warn("request rejected",
		"code", pe.Code,
		"method", c.Request.Method,
		"path", c.FullPath(),
		"client_ip", c.ClientIP(),
		"caller", Caller(c),
	)
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: pe.ToDetail()})
}
