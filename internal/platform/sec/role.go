// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "slices"

// # User Roles

// UserRole represents one authorization grant held by an account.
type UserRole string

const (
	// Default role for customers renting storage units
	RoleUser UserRole = "user"

	// Full back-office access
	RoleAdmin UserRole = "admin"

	// Back-office staff
	RoleModerator UserRole = "moderator"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	default:
		return false
	}
}

// # Role Sets

// RoleSet is the set of roles granted to an identity. It is never empty for a stored account.
type RoleSet []UserRole

// Has reports whether the set contains role.
func (set RoleSet) Has(role UserRole) bool {
	return slices.Contains(set, role)
}

// HasAny reports whether the set shares at least one role with required.
func (set RoleSet) HasAny(required ...UserRole) bool {
	for _, role := range required {
		if set.Has(role) {
			return true
		}
	}
	return false
}

// Strings returns the roles as plain strings, in order.
func (set RoleSet) Strings() []string {
	out := make([]string, len(set))
	for i, role := range set {
		out[i] = string(role)
	}
	return out
}

// RolesFromStrings converts stored role names into a [RoleSet].
func RolesFromStrings(values []string) RoleSet {
	set := make(RoleSet, 0, len(values))
	for _, value := range values {
		set = append(set, UserRole(value))
	}
	return set
}

// # Policies

// RequireClientOnly passes for plain customers: the set holds user and
// neither admin nor moderator.
func RequireClientOnly(roles RoleSet) bool {
	return roles.Has(RoleUser) && !roles.HasAny(RoleAdmin, RoleModerator)
}

// RequireAdminAccess passes when the set holds admin or moderator.
func RequireAdminAccess(roles RoleSet) bool {
	return roles.HasAny(RoleAdmin, RoleModerator)
}

// RequireAnyOf passes when roles and required intersect.
func RequireAnyOf(roles RoleSet, required ...UserRole) bool {
	return roles.HasAny(required...)
}
