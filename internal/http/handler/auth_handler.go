package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitelift/siteauth/internal/http/middleware"
	"github.com/sitelift/siteauth/internal/service"
)

// AuthHandler binds the dispatcher to gin routes.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Dispatch serves the envelope endpoint: the action travels in the body.
func (h *AuthHandler) Dispatch(c *gin.Context) {
	h.run(c, "")
}

// Register, Login, VerifySession, and Logout are fixed-action aliases of the
// envelope endpoint.
func (h *AuthHandler) Register(c *gin.Context)      { h.run(c, service.ActionRegister.String()) }
func (h *AuthHandler) Login(c *gin.Context)         { h.run(c, service.ActionLogin.String()) }
func (h *AuthHandler) VerifySession(c *gin.Context) { h.run(c, service.ActionVerifySession.String()) }
func (h *AuthHandler) Logout(c *gin.Context)        { h.run(c, service.ActionLogout.String()) }

// Me resolves the account behind the bearer token.
func (h *AuthHandler) Me(c *gin.Context) {
	siteCtx, ok := middleware.GetSiteContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, service.Response{Success: false, Error: "unknown site"})
		return
	}

	sessionToken, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, service.Response{Success: false, Error: "invalid or expired session"})
		return
	}

	resp, err := h.Auth.GetUser(c.Request.Context(), siteCtx, service.Request{SessionToken: sessionToken})
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Healthz reports liveness.
func (h *AuthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) run(c *gin.Context, action string) {
	siteCtx, ok := middleware.GetSiteContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, service.Response{Success: false, Error: "unknown site"})
		return
	}

	var req service.Request
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, service.Response{Success: false, Error: "invalid payload"})
			return
		}
	}
	if action != "" {
		req.Action = action
	}

	resp, err := h.Auth.Dispatch(c.Request.Context(), siteCtx, req)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func respondAuthError(c *gin.Context, err error) {
	if authErr, ok := err.(*service.AuthError); ok {
		c.JSON(authErr.Status, service.Response{Success: false, Error: authErr.Description})
		return
	}
	c.JSON(http.StatusInternalServerError, service.Response{Success: false, Error: "internal error"})
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
