// Package permission maps directory roles to capabilities. Everything here is pure.
package permission

import (
	"fmt"

	"attendance/internal/model"
)

// AttendanceRoles are the roles allowed to check in and out.
var AttendanceRoles = []model.Role{model.RoleAdmin, model.RoleEmployee}

// Result is the outcome of a permission check, with a reason the UI can show verbatim.
type Result struct {
	Allowed      bool         `json:"allowed"`
	Reason       string       `json:"reason"`
	Role         model.Role   `json:"role"`
	AllowedRoles []model.Role `json:"allowedRoles"`
}

// Capabilities is the full capability set of a role.
type Capabilities struct {
	Role          model.Role `json:"role"`
	CanAttendance bool       `json:"canAttendance"`
	IsAdmin       bool       `json:"isAdmin"`
	IsEmployee    bool       `json:"isEmployee"`
	IsUser        bool       `json:"isUser"`
}

// CanAttend reports whether role may check in/out. USER accounts are unverified and denied.
func CanAttend(role model.Role) bool {
	return role == model.RoleAdmin || role == model.RoleEmployee
}

func IsAdminRole(role model.Role) bool {
	return role == model.RoleAdmin
}

// ValidRole reports whether role is one of the three known roles.
func ValidRole(role model.Role) bool {
	switch role {
	case model.RoleUser, model.RoleEmployee, model.RoleAdmin:
		return true
	}
	return false
}

// Check evaluates the attendance permission of role.
func Check(role model.Role) Result {
	res := Result{
		Allowed:      CanAttend(role),
		Role:         role,
		AllowedRoles: AttendanceRoles,
	}
	if res.Allowed {
		res.Reason = fmt.Sprintf("role %s may record attendance", role)
		return res
	}
	res.Reason = fmt.Sprintf("role %s is not allowed to record attendance; only %s and %s can check in or out",
		displayRole(role), model.RoleAdmin, model.RoleEmployee)
	return res
}

// For returns the capability set of role.
func For(role model.Role) Capabilities {
	return Capabilities{
		Role:          role,
		CanAttendance: CanAttend(role),
		IsAdmin:       role == model.RoleAdmin,
		IsEmployee:    role == model.RoleEmployee,
		IsUser:        role == model.RoleUser,
	}
}

func displayRole(role model.Role) string {
	if role == "" {
		return "(none)"
	}
	return string(role)
}
