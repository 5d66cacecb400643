// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/storageup/internal/platform/apperr"
	"github.com/taibuivan/storageup/internal/platform/ctxutil"
	"github.com/taibuivan/storageup/internal/platform/dberr"
	"github.com/taibuivan/storageup/internal/platform/sec"
	"github.com/taibuivan/storageup/internal/platform/validate"
	"github.com/taibuivan/storageup/internal/users/auth"
	"github.com/taibuivan/storageup/pkg/pagination"
	"github.com/taibuivan/storageup/pkg/uuid"
)

// # Service Layer

// Service orchestrates profile and user management use cases.
type Service struct {
	accountRepository AccountRepository
	hasher            *sec.Hasher
}

// NewService constructs a new [Service]. hasher hashes passwords of
// staff-created accounts.
func NewService(accountRepo AccountRepository, hasher *sec.Hasher) *Service {
	return &Service{accountRepository: accountRepo, hasher: hasher}
}

// # Profile Management

/*
GetProfile retrieves the full private profile of an account.

Returns:
  - *auth.User: The hydrated account
  - error: NOT_FOUND or storage failures
*/
func (service *Service) GetProfile(context context.Context, userID string) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

/*
UpdateProfile applies a customer's own profile changes. Roles are never
changed through this path.
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input ProfileInput) (*auth.User, error) {
	if len(input.Roles) > 0 {
		return nil, apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   auth.FieldRoles,
			Message: "Roles cannot be changed from the client portal",
		})
	}

	return service.applyUpdate(context, userID, input, nil)
}

// # Back Office

/*
ListUsers returns one page of accounts, newest first.

Parameters:
  - context: context.Context
  - name: string (optional, case-insensitive substring of the name)
  - params: pagination.Params

Returns:
  - []*auth.User: The page
  - pagination.Meta: Page metadata counted over the filtered set
  - error: Storage failures
*/
func (service *Service) ListUsers(context context.Context, name string, params pagination.Params) ([]*auth.User, pagination.Meta, error) {
	users, total, err := service.accountRepository.List(context, auth.ListFilter{
		Name:   strings.TrimSpace(name),
		Offset: params.Offset(),
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, pagination.Meta{}, mapStoreError(err)
	}
	return users, pagination.NewMeta(params, total), nil
}

/*
SearchUsers finds accounts whose name or email contains query, for staff
pickers.

Returns:
  - []UserSummary: At most limit matches ordered by name
  - error: VALIDATION_ERROR for a blank query, or storage failures
*/
func (service *Service) SearchUsers(context context.Context, query string, limit int) ([]UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validate.RequiredError("q", "Search query is required")
	}

	switch {
	case limit <= 0:
		limit = pagination.DefaultLimit
	case limit > pagination.MaxLimit:
		limit = pagination.MaxLimit
	}

	users, err := service.accountRepository.Search(context, query, limit)
	if err != nil {
		return nil, mapStoreError(err)
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, summarize(user))
	}
	return summaries, nil
}

/*
CreateUser registers an account on behalf of a staff member.

Description: The account gets ["user"] unless roles are given, and only
admins may give them. The password is hashed before it reaches storage.

Returns:
  - *auth.User: The created account
  - error: VALIDATION_ERROR, INSUFFICIENT_ROLE, DUPLICATE_EMAIL or storage failures
*/
func (service *Service) CreateUser(context context.Context, actor *sec.Principal, input CreateUserInput) (*auth.User, error) {
	validator := auth.ValidateRegistration(&validate.Validator{}, input.Name, input.Email, input.PhoneNumber, input.Password)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	roles := sec.RoleSet{sec.RoleUser}
	if len(input.Roles) > 0 {
		if !actor.Roles.Has(sec.RoleAdmin) {
			return nil, apperr.InsufficientRole("Only admins can assign roles")
		}
		var err error
		if roles, err = parseRoles(input.Roles); err != nil {
			return nil, err
		}
	}

	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("account_service_hash_failed: %w", err))
	}

	now := time.Now()
	user := &auth.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(input.Name),
		Email:        auth.NormalizeEmail(input.Email),
		PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
		PasswordHash: passwordHash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := service.accountRepository.Create(context, user); err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			return nil, apperr.DuplicateEmail()
		}
		return nil, mapStoreError(err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_created_by_staff",
		slog.String("user_id", user.ID),
		slog.String("actor_id", actor.UserID),
	)
	return user, nil
}

/*
UpdateUser applies back-office changes to any account.

Description: Only admins may change roles; moderators may edit profile
fields. The resulting role set is never empty.
*/
func (service *Service) UpdateUser(context context.Context, actor *sec.Principal, userID string, input ProfileInput) (*auth.User, error) {
	var roles sec.RoleSet
	if len(input.Roles) > 0 {
		if !actor.Roles.Has(sec.RoleAdmin) {
			return nil, apperr.InsufficientRole("Only admins can change roles")
		}

		var err error
		if roles, err = parseRoles(input.Roles); err != nil {
			return nil, err
		}
	}

	user, err := service.applyUpdate(context, userID, input, roles)
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_updated_by_staff",
		slog.String("user_id", userID),
		slog.String("actor_id", actor.UserID),
	)
	return user, nil
}

/*
DeleteUser permanently removes an account.

Description: Outstanding session tokens for the account keep their signature
but fail the gate with ACCOUNT_NOT_FOUND from then on. Only admins may delete,
and never their own account.
*/
func (service *Service) DeleteUser(context context.Context, actor *sec.Principal, userID string) error {
	if !actor.Roles.Has(sec.RoleAdmin) {
		return apperr.InsufficientRole("Only admins can delete users")
	}
	if actor.UserID == userID {
		return validate.RequiredError("id", "You cannot delete your own account")
	}

	if err := service.accountRepository.DeleteByID(context, userID); err != nil {
		return mapStoreError(err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_deleted",
		slog.String("user_id", userID),
		slog.String("actor_id", actor.UserID),
	)
	return nil
}

// # Helpers

func (service *Service) applyUpdate(context context.Context, userID string, input ProfileInput, roles sec.RoleSet) (*auth.User, error) {
	if err := validateProfile(input); err != nil {
		return nil, err
	}

	update := auth.ProfileUpdate{
		Name:           input.Name,
		PhoneNumber:    input.PhoneNumber,
		AddressLineOne: input.AddressLineOne,
		AddressLineTwo: input.AddressLineTwo,
		City:           input.City,
		StateProvince:  input.StateProvince,
		ZipCode:        input.ZipCode,
		Language:       input.Language,
		Roles:          roles,
	}

	if update.Empty() {
		return service.GetProfile(context, userID)
	}

	user, err := service.accountRepository.UpdateProfile(context, userID, update)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

func validateProfile(input ProfileInput) error {
	validator := &validate.Validator{}

	if input.Name != nil {
		validator.Required(auth.FieldName, *input.Name).
			MinLen(auth.FieldName, *input.Name, auth.NameMinLength).
			MaxLen(auth.FieldName, *input.Name, auth.NameMaxLength)
	}
	if input.PhoneNumber != nil {
		validator.Phone(auth.FieldPhoneNumber, *input.PhoneNumber)
	}

	optional := []struct {
		field string
		value *string
	}{
		{auth.FieldAddressLineOne, input.AddressLineOne},
		{auth.FieldAddressLineTwo, input.AddressLineTwo},
		{auth.FieldCity, input.City},
		{auth.FieldStateProvince, input.StateProvince},
		{auth.FieldZipCode, input.ZipCode},
		{auth.FieldLanguage, input.Language},
	}
	for _, entry := range optional {
		if entry.value != nil {
			validator.MaxLen(entry.field, *entry.value, 200)
		}
	}

	return validator.Err()
}

func parseRoles(names []string) (sec.RoleSet, error) {
	roles := sec.RolesFromStrings(names)
	for _, role := range roles {
		if !role.Valid() {
			return nil, validate.RequiredError(auth.FieldRoles, fmt.Sprintf("Unknown role %q", role))
		}
	}
	return roles, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		return apperr.NotFound("User")
	case dberr.IsTimeout(err):
		return apperr.ServiceUnavailable("Credential store is unavailable", err)
	}
	return apperr.Internal(err)
}
