package auth

import (
	"context"
	"time"
)

// IdentityStore looks up accounts. Both methods return ErrNotFound when no
// active identity matches; the store must enforce username uniqueness.
type IdentityStore interface {
	FindActiveByUsername(ctx context.Context, username string) (*Identity, error)
	FindActiveByID(ctx context.Context, id int64) (*Identity, error)
}

// SessionStore persists login records.
type SessionStore interface {
	Insert(ctx context.Context, s *Session) error
	TouchActiveByIdentity(ctx context.Context, identityID int64, at time.Time) error
}

// PermissionStore reads per-role menu grants.
type PermissionStore interface {
	GrantsForRole(ctx context.Context, role string) ([]PermissionGrant, error)
}
