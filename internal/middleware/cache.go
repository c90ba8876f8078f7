package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// NoStore keeps live session state out of every cache.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// PrivateMaxAge lets the caller's own browser reuse a response for
// maxAgeSeconds. Shared caches must not store it.
func PrivateMaxAge(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}
