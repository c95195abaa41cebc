package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const defaultMaxBodySize = 10 << 20

// BodySizeLimit restricts the request body to the given size string
// (e.g. "10MB", "512KB"). Unparseable sizes fall back to 10MB.
func BodySizeLimit(maxSize string) gin.HandlerFunc {
	size := ParseSize(maxSize, defaultMaxBodySize)
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, size)
		c.Next()
	}
}

// ParseSize parses "512", "64KB", "10MB" or "1GB" into bytes.
func ParseSize(s string, def int64) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	shift := 0
	for suffix, sh := range map[string]int{"KB": 10, "MB": 20, "GB": 30} {
		if strings.HasSuffix(s, suffix) {
			s, shift = strings.TrimSpace(strings.TrimSuffix(s, suffix)), sh
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n << shift
}
