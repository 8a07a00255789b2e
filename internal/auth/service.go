package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"sidesa.id/internal/obs"
)

// Service composes credential verification, token issuance, session tracking
// and permission resolution into the user-facing operations. Every method
// handles one request independently; the only shared state is the immutable
// issuer configuration.
type Service struct {
	identities IdentityStore
	verifier   *Verifier
	issuer     *Issuer
	tracker    *Tracker
	resolver   *Resolver
}

// NewService wires the service from its store contracts and a configured
// issuer.
func NewService(identities IdentityStore, sessions SessionStore, perms PermissionStore, issuer *Issuer) (*Service, error) {
	if identities == nil || sessions == nil || perms == nil {
		return nil, errors.New("auth: all stores are required")
	}
	if issuer == nil {
		return nil, errors.New("auth: issuer is required")
	}
	return &Service{
		identities: identities,
		verifier:   NewVerifier(identities),
		issuer:     issuer,
		tracker:    NewTracker(sessions),
		resolver:   NewResolver(perms),
	}, nil
}

// LoginInput is the validated login request. DeviceType and DeviceInfo are
// optional and default inside the tracker.
type LoginInput struct {
	Username   string
	Password   string
	DeviceType string
	DeviceInfo string
}

// LoginResult carries both tokens, the session id and the public identity.
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
	Identity         PublicIdentity
}

// RefreshResult carries the renewed access token and the current identity.
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	Identity        PublicIdentity
}

// VerifyResult echoes the identity as asserted by the token claims.
type VerifyResult struct {
	Identity PublicIdentity
	Claims   *AccessClaims
}

// PermissionsResult is the resolved capability view for the caller's role.
type PermissionsResult struct {
	Identity PublicIdentity
	Resolved ResolvedPermissions
}

// Login verifies credentials, mints an access/refresh token pair and records
// a session. Credential failures surface as ErrInvalidCredential regardless
// of whether the username or the password was wrong.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	identity, err := s.verifier.Verify(ctx, in.Username, in.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			obs.IncLogin("denied")
		} else if !errors.Is(err, ErrMissingInput) {
			obs.IncLogin("error")
		}
		return nil, err
	}

	access, accessExp, err := s.issuer.IssueAccess(identity)
	if err != nil {
		obs.IncLogin("error")
		return nil, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(identity)
	if err != nil {
		obs.IncLogin("error")
		return nil, err
	}
	session, err := s.tracker.RecordLogin(ctx, identity.ID, in.DeviceType, in.DeviceInfo)
	if err != nil {
		obs.IncLogin("error")
		return nil, err
	}

	obs.IncLogin("success")
	return &LoginResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionID:        session.ID,
		Identity:         identity.Public(),
	}, nil
}

// Refresh validates a refresh token, re-fetches the identity so the new
// access token carries current role and areas, and touches the session.
// A token for an identity that has since gone inactive fails exactly like an
// invalid token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrMissingInput
	}
	claims, err := s.issuer.ValidateRefresh(refreshToken)
	if err != nil {
		obs.IncTokenValidation("refresh", validationResult(err))
		return nil, err
	}
	identity, err := s.identities.FindActiveByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.IncTokenValidation("refresh", "revoked")
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	access, accessExp, err := s.issuer.IssueAccess(identity)
	if err != nil {
		return nil, err
	}
	s.tracker.Touch(ctx, identity.ID)

	obs.IncTokenValidation("refresh", "ok")
	return &RefreshResult{
		AccessToken:     access,
		AccessExpiresAt: accessExp,
		Identity:        identity.Public(),
	}, nil
}

// Verify validates an access token and echoes its claims. The identity store
// is deliberately not consulted: role or area changes become visible only on
// refresh or token expiry.
func (s *Service) Verify(ctx context.Context, accessToken string) (*VerifyResult, error) {
	claims, err := s.issuer.ValidateAccess(accessToken)
	if err != nil {
		obs.IncTokenValidation("access", validationResult(err))
		return nil, err
	}
	s.tracker.Touch(ctx, claims.UserID)

	obs.IncTokenValidation("access", "ok")
	return &VerifyResult{
		Identity: claims.PublicIdentity(),
		Claims:   claims,
	}, nil
}

// Permissions validates an access token and resolves the caller's role into
// per-menu capabilities plus the area scope from the token.
func (s *Service) Permissions(ctx context.Context, accessToken string) (*PermissionsResult, error) {
	claims, err := s.issuer.ValidateAccess(accessToken)
	if err != nil {
		obs.IncTokenValidation("access", validationResult(err))
		return nil, err
	}
	menus, err := s.resolver.Resolve(ctx, claims.Role)
	if err != nil {
		return nil, err
	}
	return &PermissionsResult{
		Identity: claims.PublicIdentity(),
		Resolved: ResolvedPermissions{
			Menus: menus,
			Areas: claims.Scope(),
		},
	}, nil
}

func validationResult(err error) string {
	if errors.Is(err, ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}
