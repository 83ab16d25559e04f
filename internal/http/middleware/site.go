package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitelift/siteauth/internal/site"
)

const siteContextKey = "siteContext"

// Site resolves the tenant for the request, from the X-Site-ID header when
// present, otherwise from the serving host. Unknown sites fail the request
// before any handler runs.
func Site(resolver *site.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		siteID := strings.TrimSpace(c.Request.Header.Get("X-Site-ID"))

		var (
			siteCtx *site.Context
			err     error
		)
		if siteID != "" {
			siteCtx, err = resolver.Resolve(c.Request.Context(), siteID)
		} else {
			siteCtx, err = resolver.ResolveByHost(c.Request.Context(), stripPort(c.Request.Host))
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown site"})
			return
		}
		c.Set(siteContextKey, siteCtx)
		c.Next()
	}
}

// GetSiteContext extracts the resolved site from gin.
func GetSiteContext(c *gin.Context) (*site.Context, bool) {
	value, ok := c.Get(siteContextKey)
	if !ok {
		return nil, false
	}
	siteCtx, ok := value.(*site.Context)
	return siteCtx, ok
}

func stripPort(host string) string {
	if strings.Contains(host, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			return h
		}
	}
	return host
}
