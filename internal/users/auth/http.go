// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/storageup/internal/platform/constants"
	"github.com/taibuivan/storageup/internal/platform/middleware"
	requestutil "github.com/taibuivan/storageup/internal/platform/request"
	"github.com/taibuivan/storageup/internal/platform/respond"
	"github.com/taibuivan/storageup/internal/platform/sec"
	"github.com/taibuivan/storageup/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the /api/auth endpoints.
//
// # Scope
//
// Signup and login for both portals, the session cookies, token refresh and
// the password reset callbacks.
type Handler struct {
	authService   *Service
	resolver      *sec.Resolver
	secureCookies bool

	forgotPasswordLimit func(http.Handler) http.Handler
}

// NewHandler constructs a [Handler]. secureCookies sets the Secure flag and
// should be true in production.
func NewHandler(service *Service, resolver *sec.Resolver, secureCookies bool) *Handler {
	return &Handler{authService: service, resolver: resolver, secureCookies: secureCookies}
}

// LimitForgotPassword puts limiter in front of POST /forgot-password, keyed by
// client IP. Refused requests get 429 with retryAfter as the hint and never
// reach the reset service.
func (handler *Handler) LimitForgotPassword(limiter middleware.KeyedLimiter, retryAfter time.Duration) *Handler {
	handler.forgotPasswordLimit = middleware.LimitByIP(limiter, retryAfter)
	return handler
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /signup, /login              : Customer storefront.
//   - POST /admin/signup, /admin/login  : Back-office portal.
//   - POST /refresh-token               : Reissue a session, tolerating expiry.
//   - POST /forgot-password             : Start the reset flow.
//   - GET  /reset-password/verify       : Check a reset token.
//   - POST /reset-password              : Redeem a reset token.
//   - POST /logout, GET /me             : Authenticated.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/signup", handler.signup)
	router.Post("/login", handler.login)
	router.Post("/admin/signup", handler.adminSignup)
	router.Post("/admin/login", handler.adminLogin)
	router.Post("/refresh-token", handler.refresh)
	if handler.forgotPasswordLimit != nil {
		router.With(handler.forgotPasswordLimit).Post("/forgot-password", handler.forgotPassword)
	} else {
		router.Post("/forgot-password", handler.forgotPassword)
	}
	router.Get("/reset-password/verify", handler.verifyResetToken)
	router.Post("/reset-password", handler.resetPassword)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(handler.authService, handler.resolver))
		r.Post("/logout", handler.logout)
		r.Get("/me", handler.me)
	})

	return router
}

// # Request & Response Payloads

type signupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type adminSignupRequest struct {
	signupRequest
	Role string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type sessionResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type refreshResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
	WasExpired bool      `json:"wasExpired"`
}

func (input signupRequest) validate(validator *validate.Validator) {
	ValidateRegistration(validator, input.Name, input.Email, input.PhoneNumber, input.Password)
}

// ValidateRegistration checks the fields every new account must carry,
// whether self-registered or created by staff.
func ValidateRegistration(validator *validate.Validator, name, email, phoneNumber, password string) *validate.Validator {
	return validator.Required(FieldName, name).
		MinLen(FieldName, name, NameMinLength).
		MaxLen(FieldName, name, NameMaxLength).
		Required(FieldEmail, email).
		Email(FieldEmail, NormalizeEmail(email)).
		Required(FieldPhoneNumber, phoneNumber).
		Phone(FieldPhoneNumber, phoneNumber).
		Required(FieldPassword, password).
		MinLen(FieldPassword, password, PasswordMinLength)
}

// # Registration

/*
signup registers a customer account.

POST /api/auth/signup

Response:
  - 201: sessionResponse, user cookie set, roles always ["user"]
  - 400: VALIDATION_ERROR, DUPLICATE_EMAIL
*/
func (handler *Handler) signup(writer http.ResponseWriter, request *http.Request) {
	var input signupRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	input.validate(validator)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Signup(request.Context(), SignupInput{
		Name:        input.Name,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		Password:    input.Password,
		Roles:       sec.RoleSet{sec.RoleUser},
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, sec.CarrierUserCookie, session.Token)
	respond.Created(writer, toSessionResponse(session))
}

/*
adminSignup registers a back-office account.

POST /api/auth/admin/signup

Description: role is "admin" or "moderator" and defaults to "admin".

Response:
  - 201: sessionResponse, admin cookie set
  - 400: VALIDATION_ERROR, DUPLICATE_EMAIL
*/
func (handler *Handler) adminSignup(writer http.ResponseWriter, request *http.Request) {
	var input adminSignupRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if input.Role == "" {
		input.Role = string(sec.RoleAdmin)
	}

	validator := &validate.Validator{}
	input.validate(validator)
	validator.OneOf(FieldRole, input.Role, string(sec.RoleAdmin), string(sec.RoleModerator))
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Signup(request.Context(), SignupInput{
		Name:        input.Name,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		Password:    input.Password,
		Roles:       sec.RoleSet{sec.UserRole(input.Role)},
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, sec.CarrierAdminCookie, session.Token)
	respond.Created(writer, toSessionResponse(session))
}

// # Authentication

/*
login authenticates a customer.

POST /api/auth/login

Response:
  - 200: sessionResponse, user cookie set
  - 401: INVALID_CREDENTIALS
  - 403: FORBIDDEN_CLIENT_ONLY for admin or moderator accounts
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	handler.authenticate(writer, request, PortalClient, sec.CarrierUserCookie)
}

/*
adminLogin authenticates a back-office member.

POST /api/auth/admin/login

Response:
  - 200: sessionResponse, admin cookie set
  - 401: INVALID_CREDENTIALS
  - 403: FORBIDDEN_ADMIN_ONLY for plain customers
*/
func (handler *Handler) adminLogin(writer http.ResponseWriter, request *http.Request) {
	handler.authenticate(writer, request, PortalAdmin, sec.CarrierAdminCookie)
}

func (handler *Handler) authenticate(writer http.ResponseWriter, request *http.Request, portal Portal, carrier sec.Carrier) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
		Portal:   portal,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, carrier, session.Token)
	respond.OK(writer, toSessionResponse(session))
}

/*
logout clears both session cookies.

POST /api/auth/logout

Description: Tokens are not revoked server side; overwriting both cookies
with an expired value removes any ambiguous session state in the browser.
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	for _, name := range []string{constants.AdminTokenCookieName, constants.UserTokenCookieName} {
		http.SetCookie(writer, handler.cookie(name, "", time.Unix(0, 0), -1))
	}
	respond.Message(writer, MessageLoggedOut)
}

/*
me returns the authenticated account.

GET /api/auth/me
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Me(request.Context(), principal)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Session Management

/*
refresh reissues the session token found on any carrier.

POST /api/auth/refresh-token

Response:
  - 200: refreshResponse, cookie rewritten on the originating carrier
  - 401: TOKEN_MISSING, TOKEN_INVALID, ACCOUNT_NOT_FOUND
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	token, carrier := handler.resolver.Extract(request)

	result, err := handler.authService.Refresh(request.Context(), token, carrier)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, result.Carrier, result.Token)
	respond.OK(writer, refreshResponse{
		Token:      result.Token,
		ExpiresAt:  result.ExpiresAt,
		WasExpired: result.WasExpired,
	})
}

// # Password Recovery

/*
forgotPassword starts the reset flow.

POST /api/auth/forgot-password

Response:
  - 200: The same message whether or not the address is registered
  - 500: EMAIL_DELIVERY_FAILED
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, NormalizeEmail(input.Email))
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, MessageResetRequested)
}

/*
verifyResetToken checks a reset token without consuming it.

GET /api/auth/reset-password/verify?token=

Response:
  - 200: MessageResetTokenValid
  - 400: RESET_TOKEN_INVALID_OR_EXPIRED
*/
func (handler *Handler) verifyResetToken(writer http.ResponseWriter, request *http.Request) {
	token := request.URL.Query().Get(FieldToken)

	if err := handler.authService.VerifyResetToken(request.Context(), token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, MessageResetTokenValid)
}

/*
resetPassword redeems a reset token.

POST /api/auth/reset-password

Response:
  - 200: MessagePasswordReset
  - 400: VALIDATION_ERROR, RESET_TOKEN_INVALID_OR_EXPIRED
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, PasswordMinLength).
		Custom("confirmPassword", input.ConfirmPassword != input.Password, "Passwords do not match")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, MessagePasswordReset)
}

// # Cookies

func (handler *Handler) setSessionCookie(writer http.ResponseWriter, carrier sec.Carrier, token string) {
	name := constants.UserTokenCookieName
	if carrier == sec.CarrierAdminCookie {
		name = constants.AdminTokenCookieName
	}

	expires := time.Now().Add(constants.TokenCookieTTL)
	http.SetCookie(writer, handler.cookie(name, token, expires, int(constants.TokenCookieTTL.Seconds())))
}

func (handler *Handler) cookie(name, value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     constants.TokenCookiePath,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   handler.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}

func toSessionResponse(session *Session) sessionResponse {
	return sessionResponse{User: session.User, Token: session.Token, ExpiresAt: session.ExpiresAt}
}
