package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin              UserRole = "admin"
	RoleProcurementOfficer UserRole = "procurement_officer"
	RoleDepartmentHead     UserRole = "department_head"
	RoleStaff              UserRole = "staff"
)

// Normalize returns the canonical form used for role comparisons.
func (r UserRole) Normalize() UserRole {
	return UserRole(strings.ToLower(strings.TrimSpace(string(r))))
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Department   string     `db:"department" json:"department"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Viewer is the identity the disposal policy evaluates: who is asking and
// which department they belong to.
type Viewer struct {
	UserID     string
	Role       UserRole
	Department string
}

// Viewer projects the user into a policy viewer.
func (u User) Viewer() Viewer {
	return Viewer{UserID: u.ID, Role: u.Role, Department: u.Department}
}

// Actor is an authenticated caller together with request metadata recorded
// in audit logs.
type Actor struct {
	Viewer
	IP        string
	UserAgent string
}
