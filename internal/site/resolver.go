package site

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sitelift/siteauth/internal/domain"
	"github.com/sitelift/siteauth/internal/repository"
)

// Context carries the resolved site for the lifetime of one request. Every
// auth operation runs against exactly one site.
type Context struct {
	Site domain.Site
}

// Resolver loads site metadata by identifier or serving host, consulting the
// cache before the store.
type Resolver struct {
	repo  repository.SiteRepository
	cache *Cache
}

// NewResolver creates a site resolver.
func NewResolver(repo repository.SiteRepository, cache *Cache) *Resolver {
	return &Resolver{repo: repo, cache: cache}
}

// Resolve loads the site for an explicit site identifier.
func (r *Resolver) Resolve(ctx context.Context, siteID string) (*Context, error) {
	cleaned := strings.TrimSpace(siteID)
	if cleaned == "" {
		return nil, fmt.Errorf("resolve site: %w", domain.ErrSiteNotFound)
	}

	if cached, ok := r.cache.get(ctx, idKey(cleaned)); ok {
		return &Context{Site: cached}, nil
	}

	site, err := r.repo.GetByID(ctx, cleaned)
	if err != nil {
		zap.L().Warn("site lookup failed", zap.String("site_id", cleaned), zap.Error(err))
		return nil, fmt.Errorf("resolve site: %w", err)
	}

	r.cache.put(ctx, idKey(cleaned), site)
	return &Context{Site: site}, nil
}

// ResolveByHost loads the site that serves the given host name.
func (r *Resolver) ResolveByHost(ctx context.Context, host string) (*Context, error) {
	cleaned := strings.ToLower(strings.TrimSpace(host))
	if cleaned == "" {
		return nil, fmt.Errorf("resolve site by host: %w", domain.ErrSiteNotFound)
	}

	if cached, ok := r.cache.get(ctx, hostKey(cleaned)); ok {
		return &Context{Site: cached}, nil
	}

	site, err := r.repo.GetByHost(ctx, cleaned)
	if err != nil {
		zap.L().Warn("site lookup by host failed", zap.String("host", cleaned), zap.Error(err))
		return nil, fmt.Errorf("resolve site by host: %w", err)
	}

	r.cache.put(ctx, hostKey(cleaned), site)
	return &Context{Site: site}, nil
}
