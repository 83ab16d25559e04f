package service

import (
	"github.com/sitelift/siteauth/internal/domain"
)

// Request is the transport-agnostic auth envelope. The site is resolved by
// middleware before dispatch; SiteID here is only used to cross-check it.
type Request struct {
	Action       string         `json:"action"`
	SiteID       string         `json:"siteId"`
	BusinessID   string         `json:"businessId,omitempty"`
	Email        string         `json:"email,omitempty"`
	Password     string         `json:"password,omitempty"`
	Name         string         `json:"name,omitempty"`
	SessionToken string         `json:"sessionToken,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SessionView is the caller-facing session descriptor. ExpiresAt is Unix
// milliseconds.
type SessionView struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
	SiteID    string `json:"siteId"`
	UserID    string `json:"userId"`
}

// Response is the uniform envelope for every operation, success or failure.
// User is always the sanitized projection; the stored hash has no path here.
type Response struct {
	Success bool                  `json:"success"`
	User    *domain.SanitizedUser `json:"user,omitempty"`
	Session *SessionView          `json:"session,omitempty"`
	Message string                `json:"message,omitempty"`
	Error   string                `json:"error,omitempty"`
}
