package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL bounds how long role and area claims may be stale:
	// validation never re-reads the identity store.
	AccessTokenTTL = 30 * time.Minute
	// RefreshTokenTTL bounds the overall session lifetime without re-login.
	RefreshTokenTTL = 7 * 24 * time.Hour

	defaultIssuerName = "sidesa"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AccessClaims are embedded into short-lived access tokens. They are a
// snapshot of the identity at issuance time.
type AccessClaims struct {
	UserID           int64    `json:"user_id"`
	Username         string   `json:"username"`
	Role             string   `json:"role"`
	AssignedDesa     []string `json:"assigned_desa"`
	AssignedKelompok []string `json:"assigned_kelompok"`
	TokenType        string   `json:"token_type"`
	jwt.RegisteredClaims
}

// PublicIdentity reconstructs the caller-visible identity from token claims.
// Email is not carried in the token.
func (c *AccessClaims) PublicIdentity() PublicIdentity {
	return PublicIdentity{
		ID:               c.UserID,
		Username:         c.Username,
		Role:             c.Role,
		AssignedDesa:     copyAreas(c.AssignedDesa),
		AssignedKelompok: copyAreas(c.AssignedKelompok),
	}
}

// Scope returns the accessible-area view of the claims with non-nil slices.
func (c *AccessClaims) Scope() AreaScope {
	return AreaScope{
		Desa:     copyAreas(c.AssignedDesa),
		Kelompok: copyAreas(c.AssignedKelompok),
	}
}

// RefreshClaims carry only what is needed to re-fetch the identity.
type RefreshClaims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer mints and validates the two token classes. The signing secrets are
// fixed at construction and never re-read from the environment.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.refreshTTL = ttl
		}
	}
}

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if name = strings.TrimSpace(name); name != "" {
			i.issuer = name
		}
	}
}

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer from the two signing secrets. The secrets
// must be distinct so compromise of one token class does not compromise the
// other.
func NewIssuer(accessSecret, refreshSecret string, opts ...IssuerOption) (*Issuer, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: both signing secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	i := &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     AccessTokenTTL,
		refreshTTL:    RefreshTokenTTL,
		issuer:        defaultIssuerName,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccess signs a short-lived token embedding the identity's role and
// area scope as of now.
func (i *Issuer) IssueAccess(identity *Identity) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.accessTTL)
	claims := AccessClaims{
		UserID:           identity.ID,
		Username:         identity.Username,
		Role:             identity.Role,
		AssignedDesa:     copyAreas(identity.AssignedDesa),
		AssignedKelompok: copyAreas(identity.AssignedKelompok),
		TokenType:        tokenTypeAccess,
		RegisteredClaims: i.registered(identity.Username, now, exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRefresh signs a long-lived token carrying only id and username.
func (i *Issuer) IssueRefresh(identity *Identity) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.refreshTTL)
	claims := RefreshClaims{
		UserID:           identity.ID,
		Username:         identity.Username,
		TokenType:        tokenTypeRefresh,
		RegisteredClaims: i.registered(identity.Username, now, exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ValidateAccess verifies signature, structure and expiry of an access token.
// It returns ErrTokenExpired for an otherwise well-formed expired token and
// ErrInvalidToken for everything else, including refresh tokens presented as
// access tokens.
func (i *Issuer) ValidateAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(token, claims, i.accessSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefresh verifies a refresh token. Same failure modes as
// ValidateAccess.
func (i *Issuer) ValidateRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(token, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

func (i *Issuer) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	},
		jwt.WithTimeFunc(func() time.Time { return i.now().UTC() }),
		jwt.WithIssuer(i.issuer),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
