package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sitelift/siteauth/internal/domain"
	"github.com/sitelift/siteauth/internal/password"
	"github.com/sitelift/siteauth/internal/repository"
	"github.com/sitelift/siteauth/internal/site"
	"github.com/sitelift/siteauth/internal/token"
)

const (
	minPasswordLength = 6
	touchLoginTimeout = 3 * time.Second
)

// AuthService is the dispatcher: it validates input, orchestrates the store,
// hasher, and token codec, and maps every outcome onto the uniform envelope.
type AuthService struct {
	users  repository.SiteUserRepository
	hasher *password.Hasher
	codec  *token.Codec
	node   *snowflake.Node
	logger *zap.Logger
	tracer trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.SiteUserRepository, hasher *password.Hasher, codec *token.Codec, node *snowflake.Node, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		codec:  codec,
		node:   node,
		logger: logger,
		tracer: otel.Tracer("github.com/sitelift/siteauth/internal/service"),
	}
}

// Dispatch routes one envelope request to its operation. The site has already
// been resolved by the transport layer; a SiteID in the body that disagrees
// with it is rejected before any work happens.
func (s *AuthService) Dispatch(ctx context.Context, siteCtx *site.Context, req Request) (Response, error) {
	if siteCtx == nil {
		return Response{}, newAuthError("invalid_site", "unknown site", http.StatusBadRequest)
	}
	if body := strings.TrimSpace(req.SiteID); body != "" && body != siteCtx.Site.ID {
		return Response{}, newAuthError("invalid_site", "site mismatch", http.StatusBadRequest)
	}

	action, err := ParseAction(req.Action)
	if err != nil {
		return Response{}, newAuthError("invalid_request", err.Error(), http.StatusBadRequest)
	}

	switch action {
	case ActionRegister:
		return s.Register(ctx, siteCtx, req)
	case ActionLogin:
		return s.Login(ctx, siteCtx, req)
	case ActionVerifySession:
		return s.VerifySession(ctx, siteCtx, req)
	case ActionGetUser:
		return s.GetUser(ctx, siteCtx, req)
	case ActionLogout:
		return s.Logout(ctx, siteCtx)
	}
	// ParseAction only yields the five actions above.
	return Response{}, newAuthError("invalid_request", "unknown action", http.StatusBadRequest)
}

// Register creates a new account on the site and issues its first session.
func (s *AuthService) Register(ctx context.Context, siteCtx *site.Context, req Request) (Response, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return Response{}, newAuthError("invalid_request", "a valid email is required", http.StatusBadRequest)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return Response{}, newAuthError("invalid_request",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength), http.StatusBadRequest)
	}

	businessID := strings.TrimSpace(req.BusinessID)
	if businessID == "" {
		businessID = siteCtx.Site.BusinessID
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		span.RecordError(err)
		s.log().Error("password hash failed", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
		return Response{}, errInternal()
	}

	user := domain.SiteUser{
		ID:           s.node.Generate().Int64(),
		SiteID:       siteCtx.Site.ID,
		BusinessID:   businessID,
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Metadata:     req.Metadata,
	}

	created, err := s.users.Insert(ctx, user)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrDuplicateUser) {
			return Response{}, newAuthError("duplicate_user",
				"an account with this email already exists on this site", http.StatusConflict)
		}
		s.log().Error("insert user failed", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
		return Response{}, errInternal()
	}

	session, err := s.issueSession(created)
	if err != nil {
		span.RecordError(err)
		s.log().Error("issue session failed", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
		return Response{}, errInternal()
	}

	s.audit("register.success", siteCtx.Site.ID, created.ID)
	sanitized := created.Sanitized()
	return Response{Success: true, User: &sanitized, Session: session}, nil
}

// Login verifies credentials and issues a fresh session. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, siteCtx *site.Context, req Request) (Response, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	email, err := normalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return Response{}, errInvalidCredentials()
	}

	user, err := s.users.FindByEmail(ctx, siteCtx.Site.ID, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			span.RecordError(err)
			s.log().Error("login lookup failed", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
			return Response{}, errInternal()
		}
		s.log().Info("login attempt for unknown account", zap.String("site_id", siteCtx.Site.ID))
		return Response{}, errInvalidCredentials()
	}

	ok, err := s.hasher.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		span.RecordError(err)
		s.log().Error("password verify failed", zap.String("site_id", siteCtx.Site.ID), zap.Int64("user_id", user.ID), zap.Error(err))
		return Response{}, errInternal()
	}
	if !ok {
		s.log().Info("login attempt with wrong password", zap.String("site_id", siteCtx.Site.ID), zap.Int64("user_id", user.ID))
		return Response{}, errInvalidCredentials()
	}

	session, err := s.issueSession(user)
	if err != nil {
		span.RecordError(err)
		s.log().Error("issue session failed", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
		return Response{}, errInternal()
	}

	// Fire and forget: the login response never waits on, or fails because
	// of, the timestamp update.
	go s.touchLogin(context.WithoutCancel(ctx), siteCtx.Site.ID, user.ID)

	s.audit("login.success", siteCtx.Site.ID, user.ID)
	sanitized := user.Sanitized()
	return Response{Success: true, User: &sanitized, Session: session}, nil
}

// VerifySession validates a token against the current site and materializes
// the account it names. Every failure mode collapses to one generic error.
func (s *AuthService) VerifySession(ctx context.Context, siteCtx *site.Context, req Request) (Response, error) {
	ctx, span := s.startSpan(ctx, "AuthService.VerifySession")
	defer span.End()

	user, claims, authErr := s.sessionUser(ctx, siteCtx, req.SessionToken)
	if authErr != nil {
		return Response{}, authErr
	}

	s.audit("session.verified", siteCtx.Site.ID, user.ID)
	sanitized := user.Sanitized()
	return Response{
		Success: true,
		User:    &sanitized,
		Session: &SessionView{
			Token:     req.SessionToken,
			ExpiresAt: claims.ExpiresAt.UnixMilli(),
			SiteID:    claims.SiteID,
			UserID:    strconv.FormatInt(user.ID, 10),
		},
	}, nil
}

// GetUser returns the sanitized account behind a valid session token.
func (s *AuthService) GetUser(ctx context.Context, siteCtx *site.Context, req Request) (Response, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GetUser")
	defer span.End()

	claims, err := s.codec.Verify(req.SessionToken, siteCtx.Site.ID)
	if err != nil {
		s.log().Debug("session rejected", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
		return Response{}, errInvalidSession()
	}

	user, err := s.users.FindByID(ctx, siteCtx.Site.ID, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return Response{}, newAuthError("user_not_found", "user not found", http.StatusNotFound)
		}
		span.RecordError(err)
		s.log().Error("get user lookup failed", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
		return Response{}, errInternal()
	}

	sanitized := user.Sanitized()
	return Response{Success: true, User: &sanitized}, nil
}

// Logout acknowledges the request. Sessions are stateless, so discarding the
// token client-side is the whole operation.
func (s *AuthService) Logout(ctx context.Context, siteCtx *site.Context) (Response, error) {
	_, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	s.audit("logout", siteCtx.Site.ID, 0)
	return Response{Success: true, Message: "logged out"}, nil
}

func (s *AuthService) sessionUser(ctx context.Context, siteCtx *site.Context, sessionToken string) (domain.SiteUser, token.Claims, *AuthError) {
	claims, err := s.codec.Verify(sessionToken, siteCtx.Site.ID)
	if err != nil {
		s.log().Debug("session rejected", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
		return domain.SiteUser{}, token.Claims{}, errInvalidSession()
	}

	user, err := s.users.FindByID(ctx, siteCtx.Site.ID, claims.UserID)
	if err != nil {
		// A deleted account gets the same generic rejection as a bad token.
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log().Error("session user lookup failed", zap.String("site_id", siteCtx.Site.ID), zap.Error(err))
		}
		return domain.SiteUser{}, token.Claims{}, errInvalidSession()
	}
	return user, claims, nil
}

func (s *AuthService) issueSession(user domain.SiteUser) (*SessionView, error) {
	signed, expiresAt, err := s.codec.Issue(user.ID, user.SiteID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &SessionView{
		Token:     signed,
		ExpiresAt: expiresAt.UnixMilli(),
		SiteID:    user.SiteID,
		UserID:    strconv.FormatInt(user.ID, 10),
	}, nil
}

func (s *AuthService) touchLogin(ctx context.Context, siteID string, userID int64) {
	ctx, cancel := context.WithTimeout(ctx, touchLoginTimeout)
	defer cancel()
	if err := s.users.TouchLogin(ctx, userID); err != nil {
		s.log().Warn("touch login failed", zap.String("site_id", siteID), zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event, siteID string, userID int64) {
	fields := []zap.Field{
		zap.String("event", event),
		zap.String("site_id", siteID),
		zap.Time("timestamp", time.Now().UTC()),
	}
	if userID != 0 {
		fields = append(fields, zap.Int64("user_id", userID))
	}
	s.log().Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

// normalizeEmail trims, lowercases, and validates the address. It runs once
// at the dispatcher boundary so the store and hasher only ever see the
// canonical form.
func normalizeEmail(value string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	if cleaned == "" {
		return "", errors.New("email is required")
	}
	addr, err := mail.ParseAddress(cleaned)
	if err != nil || addr.Address != cleaned {
		return "", errors.New("malformed email")
	}
	return cleaned, nil
}
