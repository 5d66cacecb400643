// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/storageup/internal/platform/apperr"
	"github.com/taibuivan/storageup/internal/platform/middleware"
	requestutil "github.com/taibuivan/storageup/internal/platform/request"
	"github.com/taibuivan/storageup/internal/platform/respond"
	"github.com/taibuivan/storageup/internal/platform/sec"
	"github.com/taibuivan/storageup/pkg/pagination"
	"github.com/taibuivan/storageup/pkg/uuid"
)

// Handler implements the client profile and back-office user endpoints.
type Handler struct {
	accountService *Service
	authenticate   func(http.Handler) http.Handler
}

// NewHandler constructs an account [Handler]. authenticate is the session
// gate middleware mounted in front of every route.
func NewHandler(service *Service, authenticate func(http.Handler) http.Handler) *Handler {
	return &Handler{accountService: service, authenticate: authenticate}
}

// ClientRoutes serves /api/client: plain customers only.
func (handler *Handler) ClientRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(handler.authenticate, middleware.RequireClientOnly())

	router.Get("/profile", handler.getProfile)
	router.Post("/profile", handler.updateProfile)

	return router
}

// AdminRoutes serves /api/admin: admins and moderators.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(handler.authenticate, middleware.RequireAdminAccess())

	router.Get("/users", handler.listUsers)
	router.Post("/users", handler.createUser)
	router.Get("/users/search", handler.searchUsers)
	router.Get("/users/{id}", handler.getUser)
	router.Put("/users/{id}", handler.updateUser)
	router.Delete("/users/{id}", handler.deleteUser)

	return router
}

// UserRoutes serves /api/users: the account directory for named staff roles.
func (handler *Handler) UserRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(handler.authenticate, middleware.RequireAnyOf(sec.RoleAdmin, sec.RoleModerator))

	router.Get("/", handler.listUsers)
	router.Post("/", handler.createUser)
	router.Get("/search", handler.searchUsers)
	router.Get("/{id}", handler.getUser)

	return router
}

// # Client Profile

/*
GET /api/client/profile.

Response:
  - 200: User: The caller's account
  - 403: FORBIDDEN_CLIENT_ONLY
*/
func (handler *Handler) getProfile(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.GetProfile(request.Context(), principal.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
POST /api/client/profile.

Request:
  - Body: ProfileInput (partial, roles rejected)

Response:
  - 200: User: The updated account
  - 400: VALIDATION_ERROR
*/
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input ProfileInput
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdateProfile(request.Context(), principal.UserID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Back Office

/*
GET /api/admin/users and GET /api/users.

Request:
  - Query: page, limit, name (optional substring filter)

Response:
  - 200: Paginated users, newest first
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	users, meta, err := handler.accountService.ListUsers(request.Context(), request.URL.Query().Get("name"), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, meta)
}

/*
POST /api/admin/users and POST /api/users.

Request:
  - Body: CreateUserInput (roles default to ["user"], admins only)

Response:
  - 201: User: The created account
  - 400: VALIDATION_ERROR or DUPLICATE_EMAIL
  - 403: INSUFFICIENT_ROLE when a moderator assigns roles
*/
func (handler *Handler) createUser(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input CreateUserInput
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.CreateUser(request.Context(), principal, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
GET /api/admin/users/search and GET /api/users/search.

Request:
  - Query: q (required), limit (default 20)

Response:
  - 200: []UserSummary ordered by name
  - 400: VALIDATION_ERROR when q is blank
*/
func (handler *Handler) searchUsers(writer http.ResponseWriter, request *http.Request) {
	limit := pagination.FromRequest(request).Limit

	users, err := handler.accountService.SearchUsers(request.Context(), request.URL.Query().Get("q"), limit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, users)
}

/*
GET /api/admin/users/{id} and GET /api/users/{id}.
*/
func (handler *Handler) getUser(writer http.ResponseWriter, request *http.Request) {
	id, ok := handler.userID(writer, request)
	if !ok {
		return
	}

	user, err := handler.accountService.GetProfile(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
PUT /api/admin/users/{id}.

Response:
  - 200: User: The updated account
  - 403: INSUFFICIENT_ROLE when a moderator changes roles
*/
func (handler *Handler) updateUser(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, ok := handler.userID(writer, request)
	if !ok {
		return
	}

	var input ProfileInput
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdateUser(request.Context(), principal, id, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
DELETE /api/admin/users/{id}.

Response:
  - 204: Deleted
  - 403: INSUFFICIENT_ROLE for moderators
*/
func (handler *Handler) deleteUser(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, ok := handler.userID(writer, request)
	if !ok {
		return
	}

	if err := handler.accountService.DeleteUser(request.Context(), principal, id); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// userID reads and validates the {id} path parameter.
func (handler *Handler) userID(writer http.ResponseWriter, request *http.Request) (string, bool) {
	id := requestutil.Param(request, "id")
	if !uuid.Valid(id) {
		respond.Error(writer, request, apperr.NotFound("User"))
		return "", false
	}
	return id, true
}
