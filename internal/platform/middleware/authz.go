// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/taibuivan/storageup/internal/platform/apperr"
	"github.com/taibuivan/storageup/internal/platform/ctxutil"
	"github.com/taibuivan/storageup/internal/platform/respond"
	"github.com/taibuivan/storageup/internal/platform/sec"
)

// Authenticator turns a raw session token into a [*sec.Principal].
//
// # Why an interface?
//
// The gate lives in the auth service, which depends on the credential store.
// Declaring the contract here keeps middleware free of domain imports and
// lets tests inject a stub.
type Authenticator interface {
	Authenticate(context context.Context, token string, carrier sec.Carrier) (*sec.Principal, error)
}

// Authenticate resolves the session token and attaches the principal.
//
// # Flow
//  1. Pick the token from the first carrier that has one (admin cookie, user cookie, bearer).
//  2. Run the gate. Every failure is terminal and rendered with its error code.
//  3. Inject [*sec.Principal] into the request context for downstream use.
func Authenticate(authenticator Authenticator, resolver *sec.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token, carrier := resolver.Extract(request)

			principal, err := authenticator.Authenticate(request.Context(), token, carrier)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			recordPrincipal(request.Context(), principal.UserID)
			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// guard builds a role check that runs after [Authenticate].
func guard(allowed func(sec.RoleSet) bool, deny func() *apperr.AppError) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetPrincipal(request.Context())
			if principal == nil {
				respond.Error(writer, request, apperr.TokenMissing())
				return
			}

			if !allowed(principal.Roles) {
				respond.Error(writer, request, deny())
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// RequireClientOnly admits plain customers and rejects back-office identities.
func RequireClientOnly() func(http.Handler) http.Handler {
	return guard(sec.RequireClientOnly, func() *apperr.AppError {
		return apperr.ForbiddenClientOnly("Admins and moderators cannot access client routes")
	})
}

// RequireAdminAccess admits identities holding admin or moderator.
func RequireAdminAccess() func(http.Handler) http.Handler {
	return guard(sec.RequireAdminAccess, func() *apperr.AppError {
		return apperr.ForbiddenAdminOnly("Admin access required")
	})
}

// RequireAnyOf admits identities holding at least one of the listed roles.
func RequireAnyOf(roles ...sec.UserRole) func(http.Handler) http.Handler {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	message := "Requires one of the roles: " + strings.Join(names, ", ")

	return guard(
		func(held sec.RoleSet) bool { return sec.RequireAnyOf(held, roles...) },
		func() *apperr.AppError { return apperr.InsufficientRole(message) },
	)
}
