package domain

import (
	"strconv"
	"time"
)

// SiteUser is a user account scoped to exactly one site. The same email may
// hold independent accounts on different sites; uniqueness is (site_id, email).
type SiteUser struct {
	ID           int64
	SiteID       string
	BusinessID   string
	Email        string
	PasswordHash string
	Name         string
	Metadata     map[string]any
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// SanitizedUser is the only user shape the API layer serializes. It has no
// password hash field at all, so a credential leak through a response body is
// a compile error rather than a missing field-strip.
type SanitizedUser struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sanitized projects the account into its caller-facing view.
func (u SiteUser) Sanitized() SanitizedUser {
	return SanitizedUser{
		ID:        strconv.FormatInt(u.ID, 10),
		Email:     u.Email,
		Name:      u.Name,
		Metadata:  u.Metadata,
		CreatedAt: u.CreatedAt,
	}
}
