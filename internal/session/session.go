package session

// Identity is the authenticated actor held server-side for one session:
// either the environment-configured superuser (ID equals the role sentinel)
// or a persisted account.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// IsSuperuser reports whether the identity is the env-configured superuser
// rather than a persisted account.
func (i Identity) IsSuperuser() bool {
	return i.ID == i.Role
}
