package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bullbear/internal/logger"
)

// PipelineAuthMiddleware guards the data pipeline endpoints. apiKeys is a
// comma-separated list so a key can be rotated without downtime; any listed
// key is accepted in the X-API-Key header.
func PipelineAuthMiddleware(apiKeys string) gin.HandlerFunc {
	var keys [][]byte
	for _, k := range strings.Split(apiKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(c *gin.Context) {
		if len(keys) == 0 {
			abortWithCode(c, http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED", "Pipeline endpoints are not configured")
			return
		}
		presented := []byte(c.GetHeader("X-API-Key"))
		matched := 0
		for _, k := range keys {
			matched |= subtle.ConstantTimeCompare(presented, k)
		}
		if matched != 1 {
			logger.Get().Warnw("pipeline request rejected", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			abortWithCode(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid or missing API key")
			return
		}
		c.Next()
	}
}

func abortWithCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
