package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sitelift/siteauth/internal/config"
	"github.com/sitelift/siteauth/internal/http/handler"
	"github.com/sitelift/siteauth/internal/http/middleware"
	"github.com/sitelift/siteauth/internal/site"
)

// NewRouter wires gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, resolver *site.Resolver, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", authHandler.Healthz)

	v1 := r.Group("/v1", middleware.Site(resolver))
	{
		v1.POST("/auth", authHandler.Dispatch)

		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/session/verify", authHandler.VerifySession)
			auth.GET("/me", authHandler.Me)
			auth.POST("/logout", authHandler.Logout)
		}
	}

	return r
}
