package models

import "strings"

// UserRole is the institutional role assigned to an account.
type UserRole string

const (
	RoleSuperAdmin    UserRole = "SuperAdmin"
	RoleAcademicAdmin UserRole = "AcademicAdmin"
	RoleFinanceAdmin  UserRole = "FinanceAdmin"
	RoleHrAdmin       UserRole = "HrAdmin"
	RoleTeacher       UserRole = "Teacher"
	RoleStudent       UserRole = "Student"
)

// RoleTier groups roles by privilege. Lower values carry more privilege.
type RoleTier int

const (
	TierTop RoleTier = iota + 1
	TierAdmin
	TierStaff
	TierLearner
)

type roleInfo struct {
	tier RoleTier
	rank int
}

var roleTable = map[UserRole]roleInfo{
	RoleSuperAdmin:    {tier: TierTop, rank: 1},
	RoleAcademicAdmin: {tier: TierAdmin, rank: 10},
	RoleFinanceAdmin:  {tier: TierAdmin, rank: 11},
	RoleHrAdmin:       {tier: TierAdmin, rank: 12},
	RoleTeacher:       {tier: TierStaff, rank: 20},
	RoleStudent:       {tier: TierLearner, rank: 30},
}

// AllRoles lists every role ordered by rank.
var AllRoles = []UserRole{
	RoleSuperAdmin,
	RoleAcademicAdmin,
	RoleFinanceAdmin,
	RoleHrAdmin,
	RoleTeacher,
	RoleStudent,
}

// AdminRoles lists the roles allowed to manage accounts.
var AdminRoles = []UserRole{
	RoleSuperAdmin,
	RoleAcademicAdmin,
	RoleFinanceAdmin,
	RoleHrAdmin,
}

// ParseRole resolves a role name case-insensitively.
func ParseRole(raw string) (UserRole, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, role := range AllRoles {
		if strings.EqualFold(string(role), trimmed) {
			return role, true
		}
	}
	return "", false
}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	_, ok := roleTable[r]
	return ok
}

// Tier returns the privilege tier of r, or zero for unknown roles.
func (r UserRole) Tier() RoleTier {
	return roleTable[r].tier
}

// Rank orders roles deterministically.
func (r UserRole) Rank() int {
	if info, ok := roleTable[r]; ok {
		return info.rank
	}
	return 1 << 16
}

// IsTopTier reports whether r is the top privilege tier.
func (r UserRole) IsTopTier() bool {
	return r.Tier() == TierTop
}

// IsAdminOrAbove reports whether r may manage accounts.
func (r UserRole) IsAdminOrAbove() bool {
	tier := r.Tier()
	return tier == TierTop || tier == TierAdmin
}
