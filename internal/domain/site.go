package domain

import "time"

// Site is one generated website: an isolated namespace of user accounts.
type Site struct {
	ID         string
	BusinessID string
	Host       string
	Name       string
	Status     string
	CreatedAt  time.Time
}
