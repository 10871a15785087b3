package service

import (
	"strings"

	"github.com/noah-isme/procurement-api/internal/models"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

// DefaultPrivilegedRoles may read every department and decide disposals.
var DefaultPrivilegedRoles = []models.UserRole{models.RoleAdmin, models.RoleProcurementOfficer}

// DisposalPolicy holds the department-scoped visibility and eligibility
// rules shared by the queue and the approval path. It is stateless apart
// from the configured privileged role set.
type DisposalPolicy struct {
	privileged map[models.UserRole]struct{}
}

// NewDisposalPolicy builds a policy. An empty role list falls back to
// DefaultPrivilegedRoles.
func NewDisposalPolicy(roles ...models.UserRole) *DisposalPolicy {
	if len(roles) == 0 {
		roles = DefaultPrivilegedRoles
	}
	set := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		set[role.Normalize()] = struct{}{}
	}
	return &DisposalPolicy{privileged: set}
}

// PrivilegedRolesFromConfig converts configured role names.
func PrivilegedRolesFromConfig(raw []string) []models.UserRole {
	roles := make([]models.UserRole, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, models.UserRole(r))
	}
	return roles
}

// PrivilegedRoles lists the configured roles, e.g. for route guards.
func (p *DisposalPolicy) PrivilegedRoles() []models.UserRole {
	out := make([]models.UserRole, 0, len(p.privileged))
	for role := range p.privileged {
		out = append(out, role)
	}
	return out
}

// IsPrivileged reports whether the role sees all departments.
func (p *DisposalPolicy) IsPrivileged(role models.UserRole) bool {
	_, ok := p.privileged[role.Normalize()]
	return ok
}

// ResolveReadDepartment returns the department a read is scoped to. An empty
// result means all departments and is only produced for privileged viewers.
// Non-privileged viewers default to their own department and are refused,
// never silently filtered, when they name another one.
func (p *DisposalPolicy) ResolveReadDepartment(viewer models.Viewer, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if p.IsPrivileged(viewer.Role) {
		return requested, nil
	}
	if viewer.Department == "" {
		return "", appErrors.Clone(appErrors.ErrDepartmentScope, "")
	}
	if requested == "" || requested == viewer.Department {
		return viewer.Department, nil
	}
	return "", appErrors.Clone(appErrors.ErrDepartmentScope, "")
}

// CanCreateRequest checks that the viewer may file a disposal request for the asset.
func (p *DisposalPolicy) CanCreateRequest(viewer models.Viewer, asset models.Asset) error {
	return p.sameDepartment(viewer, asset)
}

// CanEditAsset checks that the viewer may change the asset's condition.
func (p *DisposalPolicy) CanEditAsset(viewer models.Viewer, asset models.Asset) error {
	return p.sameDepartment(viewer, asset)
}

// CanDecide checks that the viewer may approve or reject disposals.
func (p *DisposalPolicy) CanDecide(viewer models.Viewer) error {
	if p.IsPrivileged(viewer.Role) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only privileged roles may decide disposals")
}

func (p *DisposalPolicy) sameDepartment(viewer models.Viewer, asset models.Asset) error {
	if p.IsPrivileged(viewer.Role) {
		return nil
	}
	if viewer.Department != "" && viewer.Department == asset.Department {
		return nil
	}
	return appErrors.Clone(appErrors.ErrDepartmentScope, "")
}
