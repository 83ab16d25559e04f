package domain

import "errors"

var (
	// ErrDuplicateUser reports a write that would violate the
	// (site_id, email) uniqueness constraint.
	ErrDuplicateUser = errors.New("user already exists for site")

	// ErrUserNotFound reports a lookup that matched no row for the site.
	ErrUserNotFound = errors.New("user not found")

	// ErrSiteNotFound reports an unknown site identifier or host.
	ErrSiteNotFound = errors.New("site not found")
)
