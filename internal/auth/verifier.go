package auth

import (
	"context"
	"errors"
	"strings"
)

// Verifier checks presented credentials against stored password hashes.
type Verifier struct {
	identities IdentityStore
}

// NewVerifier constructs a Verifier over the identity store.
func NewVerifier(identities IdentityStore) *Verifier {
	return &Verifier{identities: identities}
}

// Verify returns the active identity matching username and password.
// Unknown usernames and wrong passwords both return ErrInvalidCredential so
// the error surface cannot be used for username enumeration. Store failures
// propagate unchanged.
func (v *Verifier) Verify(ctx context.Context, username, password string) (*Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingInput
	}
	identity, err := v.identities.FindActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if err := VerifyPassword(identity.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredential
	}
	return identity, nil
}
