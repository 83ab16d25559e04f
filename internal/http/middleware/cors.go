package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitelift/siteauth/internal/config"
)

// CORS answers preflight requests for the generated sites calling in from
// their own origins.
func CORS(cfg config.Config) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(cfg.CORSAllowedOrigins))
	allowAll := false
	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			if allowAll {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Vary", "Origin")
			}
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Site-ID, X-Request-ID")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
