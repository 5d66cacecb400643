// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	stdctx "context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/taibuivan/storageup/internal/platform/apperr"
	"github.com/taibuivan/storageup/internal/platform/constants"
	"github.com/taibuivan/storageup/internal/platform/ctxutil"
	"github.com/taibuivan/storageup/internal/platform/dberr"
	"github.com/taibuivan/storageup/internal/platform/mailer"
	"github.com/taibuivan/storageup/internal/platform/sec"
	"github.com/taibuivan/storageup/pkg/uuid"
)

// # Contracts & Types

// TokenCodec signs, verifies and decodes session tokens.
type TokenCodec interface {
	Issue(subjectID string, timeToLive time.Duration) (string, time.Time, error)
	Verify(token string) (*sec.AuthClaims, error)
	DecodeUnsafe(token string) (*sec.AuthClaims, bool)
}

// MailSender delivers one email and returns its Message-ID.
type MailSender interface {
	Send(context stdctx.Context, message mailer.Message) (string, error)
}

// Options tunes lifetimes and collaborators of the [Service].
// Zero values fall back to the package defaults.
type Options struct {
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
	StoreTimeout  time.Duration
	ClientURL     string
	Clock         sec.Clock
}

// Portal is the login surface an identity signs in through.
type Portal int

const (
	// PortalClient is the customer storefront.
	PortalClient Portal = iota
	// PortalAdmin is the back-office portal.
	PortalAdmin
)

// Session is the outcome of a successful signup, login or refresh.
type Session struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// RefreshResult carries a reissued session and the carrier to write it to.
type RefreshResult struct {
	Session
	Carrier    sec.Carrier
	WasExpired bool
}

// Service implements the identity use cases.
//
// # Review Process
//
// This service is critical for security. Changes to hashing, token handling,
// or the reset ticket lifecycle must be reviewed with the tests in service_test.go.
type Service struct {
	users    UserRepository
	tokens   TokenCodec
	hasher   *sec.Hasher
	mail     MailSender
	options  Options

	// dummyHash keeps unknown-email logins as slow as wrong-password logins.
	dummyHash string
}

// NewService constructs a [Service].
func NewService(
	users UserRepository,
	tokens TokenCodec,
	hasher *sec.Hasher,
	mail MailSender,
	options Options,
) *Service {
	if options.SessionTTL <= 0 {
		options.SessionTTL = constants.DefaultSessionTTL
	}
	if options.ResetTokenTTL <= 0 {
		options.ResetTokenTTL = constants.DefaultResetTokenTTL
	}
	if options.StoreTimeout <= 0 {
		options.StoreTimeout = constants.DefaultStoreTimeout
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}

	dummyHash, _ := hasher.Hash(uuid.New())

	return &Service{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		mail:      mail,
		options:   options,
		dummyHash: dummyHash,
	}
}

// # Registration Flow

// SignupInput holds the data required to register an identity.
type SignupInput struct {
	Name        string
	Email       string
	PhoneNumber string
	Password    string
	Roles       sec.RoleSet
}

/*
Signup registers a new identity and opens a session for it.

Parameters:
  - context: context.Context
  - input: SignupInput (already validated by the transport)

Returns:
  - *Session: The created account and its session token
  - error: DUPLICATE_EMAIL or internal failures
*/
func (service *Service) Signup(context stdctx.Context, input SignupInput) (*Session, error) {
	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	roles := input.Roles
	if len(roles) == 0 {
		roles = sec.RoleSet{sec.RoleUser}
	}

	user := &User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(input.Name),
		Email:        NormalizeEmail(input.Email),
		PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
		PasswordHash: passwordHash,
		Roles:        roles,
		CreatedAt:    service.now(),
	}

	storeCtx, cancel := service.storeContext(context)
	defer cancel()

	if err := service.users.Create(storeCtx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, apperr.DuplicateEmail()
		}
		return nil, storeFailure(err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_signed_up",
		slog.String("user_id", user.ID),
		slog.Any("roles", user.Roles.Strings()),
	)

	return service.openSession(user)
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
	Portal   Portal
}

/*
Login verifies credentials and opens a session for the requested portal.

Description: Unknown email and wrong password share one error. The portal
check runs only after the password matched, so it never reveals whether an
address is registered.

Returns:
  - *Session: The session for the authenticated identity
  - error: INVALID_CREDENTIALS, FORBIDDEN_CLIENT_ONLY, FORBIDDEN_ADMIN_ONLY
*/
func (service *Service) Login(context stdctx.Context, input LoginInput) (*Session, error) {
	storeCtx, cancel := service.storeContext(context)
	defer cancel()

	user, err := service.users.FindByEmail(storeCtx, NormalizeEmail(input.Email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, storeFailure(err)
		}
		service.hasher.Verify(input.Password, service.dummyHash)
		return nil, apperr.InvalidCredentials()
	}

	if !service.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, apperr.InvalidCredentials()
	}

	switch input.Portal {
	case PortalClient:
		if !sec.RequireClientOnly(user.Roles) {
			return nil, apperr.ForbiddenClientOnly("Admins and moderators must sign in through the admin portal")
		}
	case PortalAdmin:
		if !sec.RequireAdminAccess(user.Roles) {
			return nil, apperr.ForbiddenAdminOnly("Access denied. Admin or moderator role required")
		}
	}

	return service.openSession(user)
}

/*
Authenticate is the request gate: it turns a raw session token into a principal.

Description: Runs the verification steps strictly in order. Any failure is
terminal; a store timeout fails closed with SERVICE_UNAVAILABLE.

Parameters:
  - context: context.Context
  - token: string ("" when no carrier held one)
  - carrier: sec.Carrier (recorded on the principal)

Returns:
  - *sec.Principal: The authenticated identity
  - error: TOKEN_MISSING, TOKEN_INVALID, TOKEN_EXPIRED, ACCOUNT_NOT_FOUND, SERVICE_UNAVAILABLE
*/
func (service *Service) Authenticate(context stdctx.Context, token string, carrier sec.Carrier) (*sec.Principal, error) {
	if token == "" {
		return nil, apperr.TokenMissing()
	}

	claims, err := service.tokens.Verify(token)
	switch {
	case errors.Is(err, sec.ErrTokenExpired):
		return nil, apperr.TokenExpired()
	case err != nil:
		return nil, apperr.TokenInvalid()
	}

	user, err := service.loadSubject(context, claims.SubjectID())
	if err != nil {
		return nil, err
	}

	return user.Principal(carrier), nil
}

/*
Me returns the stored account behind an authenticated principal.
*/
func (service *Service) Me(context stdctx.Context, principal *sec.Principal) (*User, error) {
	return service.loadSubject(context, principal.UserID)
}

// # Session Management

/*
Refresh reissues a session token, tolerating expiry but never tampering.

Description: The codec checks the signature before expiry, so DecodeUnsafe
is only reached for a correctly signed token that merely expired. The new
token goes back on the admin cookie when it came from there and on the user
cookie otherwise.

Parameters:
  - context: context.Context
  - token: string
  - carrier: sec.Carrier (where token was found)

Returns:
  - *RefreshResult: New session, target carrier, WasExpired flag
  - error: TOKEN_MISSING, TOKEN_INVALID, ACCOUNT_NOT_FOUND
*/
func (service *Service) Refresh(context stdctx.Context, token string, carrier sec.Carrier) (*RefreshResult, error) {
	if token == "" {
		return nil, apperr.TokenMissing()
	}

	wasExpired := false
	claims, err := service.tokens.Verify(token)
	switch {
	case err == nil:
	case errors.Is(err, sec.ErrTokenExpired):
		decoded, ok := service.tokens.DecodeUnsafe(token)
		if !ok {
			return nil, apperr.TokenInvalid()
		}
		claims = decoded
		wasExpired = true
	default:
		return nil, apperr.TokenInvalid()
	}

	user, err := service.loadSubject(context, claims.SubjectID())
	if err != nil {
		return nil, err
	}

	session, err := service.openSession(user)
	if err != nil {
		return nil, err
	}

	target := sec.CarrierUserCookie
	if carrier == sec.CarrierAdminCookie {
		target = sec.CarrierAdminCookie
	}

	return &RefreshResult{Session: *session, Carrier: target, WasExpired: wasExpired}, nil
}

// # Password Recovery

/*
RequestPasswordReset issues a reset ticket and emails the raw token.

Description: Returns nil for unknown addresses so the caller answers every
request with the same message. Every request for a registered address
issues a new ticket that replaces any earlier one, so only the most
recently mailed token can be redeemed. If delivery fails the ticket is
cleared again so a token the user never received cannot be redeemed.

Returns:
  - error: EMAIL_DELIVERY_FAILED or internal failures
*/
func (service *Service) RequestPasswordReset(context stdctx.Context, email string) error {
	logger := ctxutil.GetLogger(context)

	storeCtx, cancel := service.storeContext(context)
	defer cancel()

	user, err := service.users.FindByEmail(storeCtx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return storeFailure(err)
	}

	rawToken, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_generate_reset_token_failed: %w", err))
	}

	expiresAt := service.now().Add(service.options.ResetTokenTTL)
	ticketCtx, cancelTicket := service.storeContext(context)
	defer cancelTicket()

	if err := service.users.SetResetTicket(ticketCtx, user.ID, sec.HashToken(rawToken), expiresAt); err != nil {
		return storeFailure(err)
	}

	message, err := resetEmail(user, service.resetLink(rawToken), service.options.ResetTokenTTL)
	if err == nil {
		_, err = service.mail.Send(context, message)
	}
	if err != nil {
		service.rollbackResetTicket(context, user.ID)
		return apperr.EmailDeliveryFailed(err)
	}

	logger.InfoContext(context, "password_reset_requested",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", expiresAt),
	)

	return nil
}

/*
VerifyResetToken reports whether rawToken names a live reset ticket. Read-only.

Returns:
  - error: RESET_TOKEN_INVALID_OR_EXPIRED when it does not
*/
func (service *Service) VerifyResetToken(context stdctx.Context, rawToken string) error {
	_, err := service.findResetTicket(context, rawToken)
	return err
}

/*
ResetPassword redeems a reset ticket and sets a new password.

Description: The password change and the ticket removal are one store
operation guarded by the ticket predicate, so a token redeems at most once.

Returns:
  - error: RESET_TOKEN_INVALID_OR_EXPIRED or internal failures
*/
func (service *Service) ResetPassword(context stdctx.Context, rawToken, newPassword string) error {
	if _, err := service.findResetTicket(context, rawToken); err != nil {
		return err
	}

	passwordHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_reset_hash_failed: %w", err))
	}

	storeCtx, cancel := service.storeContext(context)
	defer cancel()

	user, err := service.users.RedeemResetTicket(storeCtx, sec.HashToken(rawToken), service.now(), passwordHash)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperr.ResetTokenInvalidOrExpired()
		}
		return storeFailure(err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "password_reset_completed", slog.String("user_id", user.ID))
	return nil
}

// # Helpers

func (service *Service) now() time.Time {
	return service.options.Clock()
}

// openSession issues a session token for user.
func (service *Service) openSession(user *User) (*Session, error) {
	token, expiresAt, err := service.tokens.Issue(user.ID, service.options.SessionTTL)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_issue_token_failed: %w", err))
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// storeContext bounds one credential store call by the configured store timeout.
func (service *Service) storeContext(context stdctx.Context) (stdctx.Context, stdctx.CancelFunc) {
	return stdctx.WithTimeout(context, service.options.StoreTimeout)
}

// loadSubject reads the token subject within the store timeout.
func (service *Service) loadSubject(context stdctx.Context, userID string) (*User, error) {
	storeCtx, cancel := service.storeContext(context)
	defer cancel()

	user, err := service.users.FindByID(storeCtx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.AccountNotFound()
		}
		return nil, storeFailure(err)
	}
	return user, nil
}

func (service *Service) findResetTicket(context stdctx.Context, rawToken string) (*User, error) {
	if rawToken == "" {
		return nil, apperr.ResetTokenInvalidOrExpired()
	}

	storeCtx, cancel := service.storeContext(context)
	defer cancel()

	user, err := service.users.FindByResetTokenHash(storeCtx, sec.HashToken(rawToken), service.now())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.ResetTokenInvalidOrExpired()
		}
		return nil, storeFailure(err)
	}
	return user, nil
}

// rollbackResetTicket clears a ticket whose email was never delivered.
// It detaches from request cancellation so an aborted request still rolls back.
func (service *Service) rollbackResetTicket(context stdctx.Context, userID string) {
	rollbackCtx, cancel := stdctx.WithTimeout(stdctx.WithoutCancel(context), service.options.StoreTimeout)
	defer cancel()

	if err := service.users.ClearResetTicket(rollbackCtx, userID); err != nil {
		ctxutil.GetLogger(context).ErrorContext(context, "password_reset_rollback_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
}

func (service *Service) resetLink(rawToken string) string {
	base := strings.TrimRight(service.options.ClientURL, "/")
	return base + "/reset-password?token=" + url.QueryEscape(rawToken)
}

// storeFailure converts an unexpected repository error into an AppError.
func storeFailure(err error) error {
	if dberr.IsTimeout(err) || errors.Is(err, stdctx.Canceled) {
		return apperr.ServiceUnavailable("Credential store is unavailable", err)
	}
	return apperr.Internal(err)
}
