package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitelift/siteauth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ SiteUserRepository = (*PostgresSiteUserRepo)(nil)
	_ SiteRepository     = (*PostgresSiteRepo)(nil)
)

const uniqueViolationCode = "23505"

// PostgresSiteUserRepo implements SiteUserRepository on pgx. Every query runs
// under a per-call timeout so a stalled database fails the request instead of
// hanging it.
type PostgresSiteUserRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresSiteUserRepo(pool *pgxpool.Pool, timeout time.Duration) *PostgresSiteUserRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresSiteUserRepo{db: pool, timeout: timeout}
}

const selectUserColumns = `id, site_id, business_id, email, password_hash, name, metadata, created_at, last_login_at`

func (r *PostgresSiteUserRepo) FindByEmail(ctx context.Context, siteID, email string) (domain.SiteUser, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM site_users WHERE site_id = $1 AND email = $2`,
		siteID, email,
	)
	return scanSiteUser(row)
}

func (r *PostgresSiteUserRepo) FindByID(ctx context.Context, siteID string, userID int64) (domain.SiteUser, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Filtering by site as well as id keeps a replayed cross-site token from
	// materializing a foreign account.
	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM site_users WHERE site_id = $1 AND id = $2`,
		siteID, userID,
	)
	return scanSiteUser(row)
}

const insertUserSQL = `INSERT INTO site_users (id, site_id, business_id, email, password_hash, name, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + selectUserColumns

func (r *PostgresSiteUserRepo) Insert(ctx context.Context, user domain.SiteUser) (domain.SiteUser, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return domain.SiteUser{}, fmt.Errorf("encode metadata: %w", err)
	}

	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.SiteID,
		user.BusinessID,
		user.Email,
		user.PasswordHash,
		user.Name,
		metadata,
	)

	inserted, err := scanSiteUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.SiteUser{}, domain.ErrDuplicateUser
		}
		return domain.SiteUser{}, fmt.Errorf("insert user: %w", err)
	}
	return inserted, nil
}

func (r *PostgresSiteUserRepo) TouchLogin(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.Exec(ctx, `UPDATE site_users SET last_login_at = now() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}

// PostgresSiteRepo implements SiteRepository.
type PostgresSiteRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresSiteRepo(pool *pgxpool.Pool, timeout time.Duration) *PostgresSiteRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresSiteRepo{db: pool, timeout: timeout}
}

const selectSiteColumns = `site_id, business_id, host, name, status, created_at`

func (r *PostgresSiteRepo) GetByID(ctx context.Context, siteID string) (domain.Site, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`SELECT `+selectSiteColumns+` FROM sites WHERE site_id = $1`,
		siteID,
	)
	return scanSite(row)
}

func (r *PostgresSiteRepo) GetByHost(ctx context.Context, host string) (domain.Site, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`SELECT `+selectSiteColumns+` FROM sites WHERE host = $1`,
		host,
	)
	return scanSite(row)
}

func (r *PostgresSiteRepo) Upsert(ctx context.Context, site domain.Site) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`INSERT INTO sites (site_id, business_id, host, name, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (site_id) DO NOTHING`,
		site.ID, site.BusinessID, site.Host, site.Name, site.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert site: %w", err)
	}
	return nil
}

func scanSiteUser(row pgx.Row) (domain.SiteUser, error) {
	var (
		user        domain.SiteUser
		rawMetadata []byte
	)
	err := row.Scan(
		&user.ID,
		&user.SiteID,
		&user.BusinessID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&rawMetadata,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SiteUser{}, domain.ErrUserNotFound
		}
		return domain.SiteUser{}, err
	}
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &user.Metadata); err != nil {
			return domain.SiteUser{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return user, nil
}

func scanSite(row pgx.Row) (domain.Site, error) {
	var site domain.Site
	err := row.Scan(
		&site.ID,
		&site.BusinessID,
		&site.Host,
		&site.Name,
		&site.Status,
		&site.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Site{}, domain.ErrSiteNotFound
		}
		return domain.Site{}, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
