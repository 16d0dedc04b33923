package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAkimatAdmin UserRole = "AKIMAT_ADMIN"
	UserRoleKguAdmin    UserRole = "KGU_ADMIN"
	UserRoleOperator    UserRole = "OPERATOR"
	UserRoleDriver      UserRole = "DRIVER"
)

type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   UserRole
}

func (p Principal) IsAkimat() bool {
	return p.Role == UserRoleAkimatAdmin
}

func (p Principal) IsKgu() bool {
	return p.Role == UserRoleKguAdmin
}

func (p Principal) IsOperator() bool {
	return p.Role == UserRoleOperator
}

func (p Principal) IsDriver() bool {
	return p.Role == UserRoleDriver
}

// CanManageContracts is true for roles allowed to change contract lifecycles.
func (p Principal) CanManageContracts() bool {
	return p.IsAkimat() || p.IsKgu() || p.IsOperator()
}
