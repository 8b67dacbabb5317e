package models

// Role names across both deployment variants.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Variant names accepted by DASHBOARD_VARIANT.
const (
	VariantNameOwnerAdmin = "owner-admin"
	VariantNameAdminUser  = "admin-user"
)

// Variant describes one of the two structurally identical role models the
// dashboard runs as: an owner managing admin accounts, or an admin managing
// user accounts. Route prefixes, role vocabulary, the backing table, and the
// superuser env var pair all derive from the selected variant.
type Variant struct {
	Name           string
	PrivilegedRole string
	ManagedRole    string
	AdminPrefix    string // route prefix for privileged management endpoints
	ManagedPath    string // path segment for the managed account collection
	AccountTable   string
	SuperuserEnv   string // env var prefix for the superuser credential pair
	HasFeatures    bool   // per-account feature sets exist only in admin-user
}

var (
	VariantOwnerAdmin = Variant{
		Name:           VariantNameOwnerAdmin,
		PrivilegedRole: RoleOwner,
		ManagedRole:    RoleAdmin,
		AdminPrefix:    "/api/owner",
		ManagedPath:    "admins",
		AccountTable:   "admins",
		SuperuserEnv:   "OWNER",
		HasFeatures:    false,
	}

	VariantAdminUser = Variant{
		Name:           VariantNameAdminUser,
		PrivilegedRole: RoleAdmin,
		ManagedRole:    RoleUser,
		AdminPrefix:    "/api/admin",
		ManagedPath:    "users",
		AccountTable:   "users",
		SuperuserEnv:   "ADMIN",
		HasFeatures:    true,
	}
)

// VariantByName resolves a configured variant name, defaulting to admin-user.
func VariantByName(name string) Variant {
	if name == VariantNameOwnerAdmin {
		return VariantOwnerAdmin
	}
	return VariantAdminUser
}

// ValidRole reports whether role is one of the variant's two roles.
func (v Variant) ValidRole(role string) bool {
	return role == v.PrivilegedRole || role == v.ManagedRole
}
