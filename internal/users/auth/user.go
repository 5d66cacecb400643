// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements identity, session and password recovery for StorageUp.

It owns the stored account (User), the credential store contract and its two
drivers, the authentication gate that turns a session token into a
principal, token refresh, and the password reset ticket lifecycle.

# Architecture

  - Entities: User, ProfileUpdate.
  - Repository: UserRepository with MongoDB and PostgreSQL drivers.
  - Service: signup, login, gate, refresh, password reset.
  - Handler: the /api/auth routes and session cookies.
*/
package auth

import (
	"strings"
	"time"

	"github.com/taibuivan/storageup/internal/platform/sec"
)

// # Domain Entities

// User is a stored account: a storage customer or a back-office member.
type User struct {
	ID             string      `json:"id"             bson:"_id"`
	Name           string      `json:"name"           bson:"name"`
	Email          string      `json:"email"          bson:"email"`
	PhoneNumber    string      `json:"phoneNumber"    bson:"phoneNumber"`
	PasswordHash   string      `json:"-"              bson:"password"`
	Roles          sec.RoleSet `json:"roles"          bson:"roles"`
	AddressLineOne string      `json:"addressLineOne" bson:"address_line_one"`
	AddressLineTwo string      `json:"addressLineTwo" bson:"address_line_two"`
	City           string      `json:"city"           bson:"city"`
	StateProvince  string      `json:"stateProvince"  bson:"state_province"`
	ZipCode        string      `json:"zipCode"        bson:"zip_code"`
	Language       string      `json:"language"       bson:"language"`

	// The reset ticket fields are either both set or both empty.
	PasswordResetToken   string     `json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time `json:"-" bson:"passwordResetExpires,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Principal returns the identity attached to requests authenticated as user.
func (user *User) Principal(carrier sec.Carrier) *sec.Principal {
	return &sec.Principal{
		UserID:  user.ID,
		Email:   user.Email,
		Roles:   user.Roles,
		Carrier: carrier,
	}
}

// ProfileUpdate is the allow-list of mutable account fields.
// A nil field is left unchanged.
type ProfileUpdate struct {
	Name           *string
	PhoneNumber    *string
	AddressLineOne *string
	AddressLineTwo *string
	City           *string
	StateProvince  *string
	ZipCode        *string
	Language       *string

	// Roles may only be set from back-office routes.
	Roles sec.RoleSet
}

// Empty reports whether the update would change nothing.
func (update ProfileUpdate) Empty() bool {
	return update.Name == nil && update.PhoneNumber == nil &&
		update.AddressLineOne == nil && update.AddressLineTwo == nil &&
		update.City == nil && update.StateProvince == nil &&
		update.ZipCode == nil && update.Language == nil &&
		len(update.Roles) == 0
}

// Apply copies the set fields onto user.
func (update ProfileUpdate) Apply(user *User) {
	assign := func(target *string, value *string) {
		if value != nil {
			*target = *value
		}
	}

	assign(&user.Name, update.Name)
	assign(&user.PhoneNumber, update.PhoneNumber)
	assign(&user.AddressLineOne, update.AddressLineOne)
	assign(&user.AddressLineTwo, update.AddressLineTwo)
	assign(&user.City, update.City)
	assign(&user.StateProvince, update.StateProvince)
	assign(&user.ZipCode, update.ZipCode)
	assign(&user.Language, update.Language)

	if len(update.Roles) > 0 {
		user.Roles = update.Roles
	}
}

// NormalizeEmail trims and lowercases an address before any store access.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// # Field Identifiers

// JSON field names used in validation errors.
const (
	FieldName           = "name"
	FieldEmail          = "email"
	FieldPhoneNumber    = "phoneNumber"
	FieldPassword       = "password"
	FieldRole           = "role"
	FieldRoles          = "roles"
	FieldToken          = "token"
	FieldAddressLineOne = "addressLineOne"
	FieldAddressLineTwo = "addressLineTwo"
	FieldCity           = "city"
	FieldStateProvince  = "stateProvince"
	FieldZipCode        = "zipCode"
	FieldLanguage       = "language"
)
