// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles profile self-service for customers and user
management for the back office.

# Architecture

  - Domain: This package depends on the auth package for the User entity
    and the ProfileUpdate allow-list.
  - Storage: The auth credential store drivers satisfy [AccountRepository].
  - Security: Every route sits behind the authentication gate and a role guard.
*/
package account

import (
	"context"

	"github.com/taibuivan/storageup/internal/users/auth"
)

// # Repository Contracts

// AccountRepository is the subset of the credential store used by this package.
type AccountRepository interface {
	/*
		FindByID retrieves an account by its unique ID.

		Returns:
		  - *auth.User: Loaded account entity
		  - error: auth.ErrUserNotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	/*
		UpdateProfile applies an allow-listed set of field changes.
	*/
	UpdateProfile(context context.Context, id string, update auth.ProfileUpdate) (*auth.User, error)

	/*
		DeleteByID removes the account permanently.
	*/
	DeleteByID(context context.Context, id string) error

	/*
		Create persists a brand-new account.

		Returns:
		  - error: auth.ErrDuplicateEmail or persistence failures
	*/
	Create(context context.Context, user *auth.User) error

	/*
		List returns one page of accounts, newest first, plus the total count.
	*/
	List(context context.Context, filter auth.ListFilter) ([]*auth.User, int, error)

	/*
		Search matches a term against names and emails, ordered by name.
	*/
	Search(context context.Context, term string, limit int) ([]*auth.User, error)
}

// CreateUserInput is the JSON allow-list accepted by the staff create endpoints.
type CreateUserInput struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phoneNumber"`
	Password    string   `json:"password"`
	Roles       []string `json:"roles,omitempty"`
}

// UserSummary is the compact shape returned by account search.
type UserSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

func summarize(user *auth.User) UserSummary {
	return UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, PhoneNumber: user.PhoneNumber}
}

// ProfileInput is the JSON allow-list accepted by profile update endpoints.
// Absent fields are left unchanged; unknown fields never reach storage.
type ProfileInput struct {
	Name           *string  `json:"name"`
	PhoneNumber    *string  `json:"phoneNumber"`
	AddressLineOne *string  `json:"addressLineOne"`
	AddressLineTwo *string  `json:"addressLineTwo"`
	City           *string  `json:"city"`
	StateProvince  *string  `json:"stateProvince"`
	ZipCode        *string  `json:"zipCode"`
	Language       *string  `json:"language"`
	Roles          []string `json:"roles,omitempty"`
}
