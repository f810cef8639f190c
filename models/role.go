package models

// Role is an access level carried in API tokens.
type Role string

const (
	// RoleAdmin can manage hosts, stacks, and issue tokens
	RoleAdmin Role = "admin"

	// RoleOperator can run container and stack operations
	RoleOperator Role = "operator"

	// RoleViewer can read hosts, containers, and stacks
	RoleViewer Role = "viewer"
)
