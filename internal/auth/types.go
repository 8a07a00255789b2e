package auth

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// RoleSuperAdmin is the only role with a fixed meaning across deployments;
// every other role is defined entirely by its permission grants.
const RoleSuperAdmin = "super_admin"

// Identity represents an administrative account. The auth core only reads
// identities; creation and mutation happen through administrative tooling.
type Identity struct {
	ID               int64
	Username         string
	Email            string
	PasswordHash     string
	Role             string
	Status           string
	AssignedDesa     []string
	AssignedKelompok []string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicIdentity is the subset of Identity safe to return to callers.
type PublicIdentity struct {
	ID               int64    `json:"id"`
	Username         string   `json:"username"`
	Email            string   `json:"email,omitempty"`
	Role             string   `json:"role"`
	AssignedDesa     []string `json:"assigned_desa"`
	AssignedKelompok []string `json:"assigned_kelompok"`
}

// Public strips the password hash and bookkeeping fields from an identity.
func (i *Identity) Public() PublicIdentity {
	return PublicIdentity{
		ID:               i.ID,
		Username:         i.Username,
		Email:            i.Email,
		Role:             i.Role,
		AssignedDesa:     copyAreas(i.AssignedDesa),
		AssignedKelompok: copyAreas(i.AssignedKelompok),
	}
}

// Session records one authenticated device binding for an identity.
type Session struct {
	ID           string
	IdentityID   int64
	DeviceType   string
	DeviceInfo   string
	LoginTime    time.Time
	LastActivity time.Time
	Active       bool
}

// PermissionGrant maps one (role, menu) pair to its capability flags.
type PermissionGrant struct {
	Role      string
	Menu      string
	CanView   bool
	CanCreate bool
	CanEdit   bool
	CanDelete bool
}

// Capabilities are the four per-menu flags exposed to callers.
type Capabilities struct {
	View   bool `json:"can_view"`
	Create bool `json:"can_create"`
	Edit   bool `json:"can_edit"`
	Delete bool `json:"can_delete"`
}

// AreaScope is the geographic scope an identity may act upon, copied verbatim
// from its token claims. Slices are never nil so callers can range without
// checks.
type AreaScope struct {
	Desa     []string `json:"desa"`
	Kelompok []string `json:"kelompok"`
}

// ResolvedPermissions is the derived, in-memory view of one role's menu
// capabilities plus the caller's accessible areas. Absence of a menu key means
// no access.
type ResolvedPermissions struct {
	Menus map[string]Capabilities `json:"permissions"`
	Areas AreaScope               `json:"accessible_areas"`
}

func copyAreas(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
