// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"time"
)

// # Storage Sentinels

var (
	// ErrUserNotFound is returned when no account matches the lookup.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("auth: duplicate email")
)

// # User Data Access

// UserRepository defines the data access contract for stored accounts.
//
// Emails are normalized by the caller with [NormalizeEmail]; drivers compare
// them byte for byte.
type UserRepository interface {

	/*
		FindByEmail returns the account registered under email.

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or storage failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByID returns the account with the given ID.

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		Create persists a brand-new account.

		Returns:
		  - error: ErrDuplicateEmail or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdateProfile applies an allow-listed set of field changes.

		Returns:
		  - *User: The account after the update
		  - error: ErrUserNotFound or persistence failures
	*/
	UpdateProfile(context context.Context, id string, update ProfileUpdate) (*User, error)

	/*
		DeleteByID removes the account permanently.

		Returns:
		  - error: ErrUserNotFound or persistence failures
	*/
	DeleteByID(context context.Context, id string) error

	/*
		List returns one page of accounts, newest first, plus the total count of
		accounts matching the filter.

		Parameters:
		  - context: context.Context
		  - filter: ListFilter (optional name substring, offset, page size)
	*/
	List(context context.Context, filter ListFilter) ([]*User, int, error)

	/*
		Search returns up to limit accounts whose name or email contains term,
		ignoring case, ordered by name ascending.
	*/
	Search(context context.Context, term string, limit int) ([]*User, error)

	/*
		SetResetTicket stores a reset token hash and its expiry on the account,
		replacing any earlier ticket.

		Returns:
		  - error: ErrUserNotFound or persistence failures
	*/
	SetResetTicket(context context.Context, id, tokenHash string, expiresAt time.Time) error

	/*
		ClearResetTicket removes both reset ticket fields.
	*/
	ClearResetTicket(context context.Context, id string) error

	/*
		FindByResetTokenHash returns the account holding tokenHash with an
		expiry strictly after now.

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound when the ticket is unknown, used, or expired
	*/
	FindByResetTokenHash(context context.Context, tokenHash string, now time.Time) (*User, error)

	/*
		RedeemResetTicket sets a new password hash and clears the ticket in one
		write, guarded by the same hash and expiry predicate as
		FindByResetTokenHash. Of two concurrent redemptions at most one succeeds.

		Returns:
		  - *User: The account after the update
		  - error: ErrUserNotFound when the predicate no longer matches
	*/
	RedeemResetTicket(context context.Context, tokenHash string, now time.Time, newPasswordHash string) (*User, error)
}

// ListFilter narrows and pages [UserRepository.List].
type ListFilter struct {
	// Name matches accounts whose name contains it, ignoring case. Empty matches all.
	Name   string
	Offset int
	Limit  int
}
