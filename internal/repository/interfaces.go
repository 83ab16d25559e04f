package repository

import (
	"context"

	"github.com/sitelift/siteauth/internal/domain"
)

// SiteUserRepository persists site-scoped user accounts. Every read is keyed
// by site, even when the user ID alone would be globally unique.
type SiteUserRepository interface {
	FindByEmail(ctx context.Context, siteID, email string) (domain.SiteUser, error)
	FindByID(ctx context.Context, siteID string, userID int64) (domain.SiteUser, error)
	// Insert creates the account, returning domain.ErrDuplicateUser when
	// (site_id, email) is already taken. Uniqueness is enforced by the
	// storage layer, not a prior existence check.
	Insert(ctx context.Context, user domain.SiteUser) (domain.SiteUser, error)
	// TouchLogin stamps last_login_at. Best effort: login responses do not
	// wait on it and must not fail because of it.
	TouchLogin(ctx context.Context, userID int64) error
}

// SiteRepository exposes site metadata lookups.
type SiteRepository interface {
	GetByID(ctx context.Context, siteID string) (domain.Site, error)
	GetByHost(ctx context.Context, host string) (domain.Site, error)
	// Upsert inserts the site if absent; used by the dev seed.
	Upsert(ctx context.Context, site domain.Site) error
}
