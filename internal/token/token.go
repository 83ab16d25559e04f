package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Lifetime is the fixed session validity window. It is not caller-tunable:
// every issued token expires exactly this long after issuance.
const Lifetime = 7 * 24 * time.Hour

const issuerName = "siteauth"

// ErrInvalidSession is the single error surfaced for any verification
// failure. Bad signature, expiry, and wrong-site replay are deliberately
// indistinguishable to callers; the wrapped cause is for server-side logs.
var ErrInvalidSession = errors.New("invalid or expired session")

// Claims is the decoded content of a verified session token.
type Claims struct {
	UserID    int64
	SiteID    string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	SiteID string `json:"site_id"`
	Email  string `json:"email"`
}

// Codec signs and verifies self-contained session tokens with a single
// process-wide HS256 secret. It keeps no state: the token is the session.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec builds a codec from the configured secret. An empty secret is a
// hard error so the service refuses to start rather than signing with a
// guessable default.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for the user on the given site, expiring at issuance
// plus Lifetime.
func (c *Codec) Issue(userID int64, siteID, email string) (string, time.Time, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("new signer: %w", err)
	}

	now := c.now().UTC()
	expiresAt := now.Add(Lifetime)
	std := gojwt.Claims{
		Subject:  strconv.FormatInt(userID, 10),
		Issuer:   issuerName,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(expiresAt),
	}
	custom := sessionClaims{SiteID: siteID, Email: email}

	signed, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("serialize token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks, in order, the signature, the expiry, and that the site claim
// matches the site the caller is operating against. Cross-site replay fails
// closed.
func (c *Codec) Verify(token, expectedSiteID string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: parse: %v", ErrInvalidSession, err)
	}

	var std gojwt.Claims
	var custom sessionClaims
	if err := parsed.Claims(c.secret, &std, &custom); err != nil {
		return Claims{}, fmt.Errorf("%w: signature: %v", ErrInvalidSession, err)
	}

	if err := std.ValidateWithLeeway(gojwt.Expected{Issuer: issuerName, Time: c.now()}, 0); err != nil {
		return Claims{}, fmt.Errorf("%w: claims: %v", ErrInvalidSession, err)
	}

	if custom.SiteID == "" || custom.SiteID != expectedSiteID {
		return Claims{}, fmt.Errorf("%w: site mismatch", ErrInvalidSession)
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: subject: %v", ErrInvalidSession, err)
	}

	return Claims{
		UserID:    userID,
		SiteID:    custom.SiteID,
		Email:     custom.Email,
		IssuedAt:  std.IssuedAt.Time(),
		ExpiresAt: std.Expiry.Time(),
	}, nil
}
