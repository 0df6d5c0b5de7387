// Package policy decides whether an authenticated caller may perform an
// account management operation. Every function is pure: it only inspects the
// caller, the target and the requested change.
package policy

import (
	"github.com/itsmahammad/UniversityERP/internal/models"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
)

// Operation names a mutation guarded by the policy.
type Operation string

const (
	OpUpdate        Operation = "update"
	OpDelete        Operation = "delete"
	OpActivate      Operation = "activate"
	OpDeactivate    Operation = "deactivate"
	OpChangeRole    Operation = "change_role"
	OpResetPassword Operation = "reset_password"
)

// CanManageAccounts requires an admin tier caller.
func CanManageAccounts(actor models.Actor) error {
	if !actor.Role.IsAdminOrAbove() {
		return appErrors.Clone(appErrors.ErrForbidden, "account management requires an administrator role")
	}
	return nil
}

// CanAssignRole guards elevation to the top tier on create, import and role
// change.
func CanAssignRole(actor models.Actor, role models.UserRole) error {
	if role.IsTopTier() && !actor.IsTopTier() {
		return appErrors.Clone(appErrors.ErrInsufficientPrivilege, "only a super administrator can assign the SuperAdmin role")
	}
	return nil
}

// CanMutate guards any change to an existing account. Top tier targets may only
// be changed by top tier callers, and callers may not deactivate or delete
// themselves.
func CanMutate(actor models.Actor, target *models.User, op Operation) error {
	if target == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if target.Role.IsTopTier() && !actor.IsTopTier() {
		return appErrors.Clone(appErrors.ErrInsufficientPrivilege, "only a super administrator can modify a super administrator account")
	}
	if isSelf(actor, target) {
		switch op {
		case OpDeactivate:
			return appErrors.Clone(appErrors.ErrSelfAction, "you cannot deactivate your own account")
		case OpDelete:
			return appErrors.Clone(appErrors.ErrSelfAction, "you cannot delete your own account")
		}
	}
	return nil
}

// CanChangeRole combines the mutation, elevation and self demotion rules.
func CanChangeRole(actor models.Actor, target *models.User, role models.UserRole) error {
	if err := CanMutate(actor, target, OpChangeRole); err != nil {
		return err
	}
	if err := CanAssignRole(actor, role); err != nil {
		return err
	}
	if isSelf(actor, target) && target.Role.IsTopTier() && !role.IsTopTier() {
		return appErrors.Clone(appErrors.ErrSelfAction, "you cannot remove your own SuperAdmin role")
	}
	return nil
}

// IsRoleNoop reports whether the requested role equals the current one.
func IsRoleNoop(target *models.User, role models.UserRole) bool {
	return target != nil && target.Role == role
}

// IsActiveNoop reports whether the requested activation state is current.
func IsActiveNoop(target *models.User, active bool) bool {
	return target != nil && target.Active == active
}

func isSelf(actor models.Actor, target *models.User) bool {
	return actor.ID != "" && actor.ID == target.ID
}
