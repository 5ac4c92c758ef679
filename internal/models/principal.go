package models

// Principal is the authenticated caller resolved from an API key.
type Principal struct {
	UserID string `json:"user_id"`

	// Global marks a privileged operator principal that may query the
	// ledger across all workspaces and run chain verification.
	Global bool `json:"global"`
}

// Workspace membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)
