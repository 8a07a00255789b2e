package auth

import "context"

// Resolver maps a role to its per-menu capability flags.
type Resolver struct {
	perms PermissionStore
}

// NewResolver constructs a Resolver over the permission store.
func NewResolver(perms PermissionStore) *Resolver {
	return &Resolver{perms: perms}
}

// Resolve fetches all grants for the role and keys them by menu name. A role
// with zero grants yields an empty, non-nil map: callers treat a missing menu
// key as no access, never as an error.
func (r *Resolver) Resolve(ctx context.Context, role string) (map[string]Capabilities, error) {
	grants, err := r.perms.GrantsForRole(ctx, role)
	if err != nil {
		return nil, err
	}
	menus := make(map[string]Capabilities, len(grants))
	for _, g := range grants {
		menus[g.Menu] = Capabilities{
			View:   g.CanView,
			Create: g.CanCreate,
			Edit:   g.CanEdit,
			Delete: g.CanDelete,
		}
	}
	return menus, nil
}
