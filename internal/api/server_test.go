// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/storageup/internal/api"
	"github.com/taibuivan/storageup/internal/platform/apperr"
	"github.com/taibuivan/storageup/internal/platform/config"
	"github.com/taibuivan/storageup/internal/platform/constants"
	"github.com/taibuivan/storageup/internal/platform/middleware"
	"github.com/taibuivan/storageup/internal/platform/respond"
	"github.com/taibuivan/storageup/internal/platform/sec"
	"github.com/taibuivan/storageup/internal/users/account"
	"github.com/taibuivan/storageup/internal/users/auth"
	"github.com/taibuivan/storageup/internal/users/auth/authtest"
)

// # Harness

type harness struct {
	router http.Handler
	users  *authtest.MemoryUserRepository
	mail   *authtest.RecordingMailer
	clock  *authtest.Clock
}

func newHarness(t *testing.T, checks ...api.HealthCheck) *harness {
	t.Helper()
	return newLimitedHarness(t, nil, checks...)
}

// newLimitedHarness guards /api/auth/forgot-password with limiter when it is not nil.
func newLimitedHarness(t *testing.T, limiter middleware.KeyedLimiter, checks ...api.HealthCheck) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		users: authtest.NewMemoryUserRepository(),
		mail:  &authtest.RecordingMailer{},
		clock: authtest.NewClock(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)),
	}

	tokens, err := sec.NewTokenService("api-test-secret", "storageup", h.clock.Now)
	require.NoError(t, err)

	hasher := sec.NewHasher(bcrypt.MinCost)
	authService := auth.NewService(h.users, tokens, hasher, h.mail, auth.Options{
		SessionTTL:    time.Hour,
		ResetTokenTTL: 30 * time.Minute,
		ClientURL:     "http://localhost:3000",
		Clock:         h.clock.Now,
	})
	resolver := sec.NewResolver()

	authHandler := auth.NewHandler(authService, resolver, false)
	if limiter != nil {
		authHandler.LimitForgotPassword(limiter, 15*time.Minute)
	}

	liveness, readiness := api.NewHealthHandlers(checks, logger)
	cfg := &config.Config{Environment: "test", ClientURL: "http://localhost:3000"}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h.router = api.NewRouter(ctx, cfg, logger, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Account:   account.NewHandler(account.NewService(h.users, hasher), middleware.Authenticate(authService, resolver)),
	})
	return h
}

// browser keeps cookies between calls the way a browser would.
type browser struct {
	t       *testing.T
	h       *harness
	cookies map[string]*http.Cookie
	bearer  string
}

func (h *harness) browser(t *testing.T) *browser {
	return &browser{t: t, h: h, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, path string, body any) *httptest.ResponseRecorder {
	b.t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(encoded)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	for _, cookie := range b.cookies {
		request.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	if b.bearer != "" {
		request.Header.Set("Authorization", "Bearer "+b.bearer)
	}

	recorder := httptest.NewRecorder()
	b.h.router.ServeHTTP(recorder, request)

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(b.cookies, cookie.Name)
			continue
		}
		b.cookies[cookie.Name] = cookie
	}
	return recorder
}

type sessionBody struct {
	Data struct {
		User struct {
			ID    string   `json:"id"`
			Email string   `json:"email"`
			Roles []string `json:"roles"`
		} `json:"user"`
		Token string `json:"token"`
	} `json:"data"`
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var target T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &target))
	return target
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) apperr.Code {
	t.Helper()
	return decode[respond.ErrorEnvelope](t, recorder).Code
}

func signupBody(email string) map[string]string {
	return map[string]string{
		"name":        "Test User",
		"email":       email,
		"phoneNumber": "0901234567",
		"password":    "password1",
	}
}

// # Scenarios

/*
TestCustomerJourney signs up a customer who can reach client routes but not
the back office.
*/
func TestCustomerJourney(t *testing.T) {
	h := newHarness(t)
	customer := h.browser(t)

	recorder := customer.do(http.MethodPost, "/api/auth/signup", signupBody("ann@example.com"))
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	session := decode[sessionBody](t, recorder)
	assert.Equal(t, []string{"user"}, session.Data.User.Roles)
	assert.NotContains(t, recorder.Body.String(), "password\"")
	require.Contains(t, customer.cookies, "token")
	assert.True(t, customer.cookies["token"].HttpOnly)

	assert.Equal(t, http.StatusOK, customer.do(http.MethodGet, "/api/client/profile", nil).Code)
	assert.Equal(t, http.StatusOK, customer.do(http.MethodGet, "/api/auth/me", nil).Code)

	recorder = customer.do(http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, apperr.CodeForbiddenAdminOnly, errorCode(t, recorder))

	recorder = customer.do(http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, apperr.CodeInsufficientRole, errorCode(t, recorder))

	recorder = customer.do(http.MethodPost, "/api/client/profile", map[string]any{"city": "Hanoi", "roles": []string{"admin"}})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, apperr.CodeValidation, errorCode(t, recorder))

	recorder = customer.do(http.MethodPost, "/api/client/profile", map[string]any{"city": "Hanoi"})
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"city":"Hanoi"`)
}

/*
TestAdminJourney registers a back-office account with the default role and
keeps it out of the storefront.
*/
func TestAdminJourney(t *testing.T) {
	h := newHarness(t)
	admin := h.browser(t)

	recorder := admin.do(http.MethodPost, "/api/auth/admin/signup", signupBody("boss@example.com"))
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	assert.Equal(t, []string{"admin"}, decode[sessionBody](t, recorder).Data.User.Roles)
	require.Contains(t, admin.cookies, "adminToken")
	assert.NotContains(t, admin.cookies, "token")

	recorder = admin.do(http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"total":1`)

	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/users", nil).Code)

	recorder = admin.do(http.MethodGet, "/api/client/profile", nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, apperr.CodeForbiddenClientOnly, errorCode(t, recorder))

	recorder = h.browser(t).do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "boss@example.com", "password": "password1",
	})
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, apperr.CodeForbiddenClientOnly, errorCode(t, recorder))

	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodGet, "/api/admin/users/not-a-uuid", nil).Code)
}

/*
TestAdminSignup_RoleValidation accepts moderator and rejects anything outside
the back-office roles.
*/
func TestAdminSignup_RoleValidation(t *testing.T) {
	h := newHarness(t)

	body := signupBody("mod@example.com")
	body["role"] = "moderator"
	recorder := h.browser(t).do(http.MethodPost, "/api/auth/admin/signup", body)
	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, []string{"moderator"}, decode[sessionBody](t, recorder).Data.User.Roles)

	body = signupBody("root@example.com")
	body["role"] = "user"
	recorder = h.browser(t).do(http.MethodPost, "/api/auth/admin/signup", body)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, apperr.CodeValidation, errorCode(t, recorder))
}

/*
TestSignup_Validation reports every invalid field at once.
*/
func TestSignup_Validation(t *testing.T) {
	h := newHarness(t)

	recorder := h.browser(t).do(http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "A", "email": "nope", "phoneNumber": "call me", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	envelope := decode[respond.ErrorEnvelope](t, recorder)
	assert.Equal(t, apperr.CodeValidation, envelope.Code)
	assert.GreaterOrEqual(t, len(envelope.Details), 4)

	recorder = h.browser(t).do(http.MethodPost, "/api/auth/signup", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

/*
TestLogout clears both session cookies.
*/
func TestLogout(t *testing.T) {
	h := newHarness(t)
	customer := h.browser(t)
	require.Equal(t, http.StatusCreated, customer.do(http.MethodPost, "/api/auth/signup", signupBody("ann@example.com")).Code)
	customer.cookies["adminToken"] = &http.Cookie{Name: "adminToken", Value: customer.cookies["token"].Value}

	recorder := customer.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	cleared := map[string]bool{}
	for _, cookie := range recorder.Result().Cookies() {
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)
		cleared[cookie.Name] = true
	}
	assert.Equal(t, map[string]bool{"token": true, "adminToken": true}, cleared)

	recorder = customer.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodeTokenMissing, errorCode(t, recorder))
}

/*
TestBearerAndExpiry authenticates through the header and reports expiry with
its own code so clients know to refresh.
*/
func TestBearerAndExpiry(t *testing.T) {
	h := newHarness(t)
	recorder := h.browser(t).do(http.MethodPost, "/api/auth/signup", signupBody("ann@example.com"))
	token := decode[sessionBody](t, recorder).Data.Token

	client := h.browser(t)
	client.bearer = token
	assert.Equal(t, http.StatusOK, client.do(http.MethodGet, "/api/auth/me", nil).Code)

	h.clock.Advance(2 * time.Hour)
	recorder = client.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodeTokenExpired, errorCode(t, recorder))

	client.bearer = token + "A"
	recorder = client.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, apperr.CodeTokenInvalid, errorCode(t, recorder))
}

/*
TestRefreshToken reissues an expired admin session on the admin cookie.
*/
func TestRefreshToken(t *testing.T) {
	h := newHarness(t)
	admin := h.browser(t)
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/auth/admin/signup", signupBody("boss@example.com")).Code)
	original := admin.cookies["adminToken"].Value

	h.clock.Advance(2 * time.Hour)

	recorder := admin.do(http.MethodPost, "/api/auth/refresh-token", nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Contains(t, recorder.Body.String(), `"wasExpired":true`)
	assert.NotEqual(t, original, admin.cookies["adminToken"].Value)
	assert.NotContains(t, admin.cookies, "token")

	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/api/admin/users", nil).Code)

	recorder = h.browser(t).do(http.MethodPost, "/api/auth/refresh-token", nil)
	assert.Equal(t, apperr.CodeTokenMissing, errorCode(t, recorder))
}

var resetTokenPattern = regexp.MustCompile(`token=([^\s"<&]+)`)

/*
TestPasswordResetFlow runs forgot, verify and reset over HTTP.
*/
func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	visitor := h.browser(t)
	require.Equal(t, http.StatusCreated, visitor.do(http.MethodPost, "/api/auth/signup", signupBody("ann@example.com")).Code)

	unknown := visitor.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"})
	known := visitor.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ann@example.com"})
	require.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, unknown.Code, known.Code)
	assert.JSONEq(t, unknown.Body.String(), known.Body.String())
	require.Len(t, h.mail.Messages(), 1)

	match := resetTokenPattern.FindStringSubmatch(h.mail.Last().Text)
	require.Len(t, match, 2)
	token, err := url.QueryUnescape(match[1])
	require.NoError(t, err)

	verifyPath := "/api/auth/reset-password/verify?token=" + url.QueryEscape(token)
	assert.Equal(t, http.StatusOK, visitor.do(http.MethodGet, verifyPath, nil).Code)

	recorder := visitor.do(http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": token, "password": "new-password", "confirmPassword": "different",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, apperr.CodeValidation, errorCode(t, recorder))

	recorder = visitor.do(http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": token, "password": "new-password", "confirmPassword": "new-password",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = visitor.do(http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": token, "password": "again-password", "confirmPassword": "again-password",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, apperr.CodeResetTokenInvalidOrExpired, errorCode(t, recorder))

	recorder = visitor.do(http.MethodGet, verifyPath, nil)
	assert.Equal(t, apperr.CodeResetTokenInvalidOrExpired, errorCode(t, recorder))

	recorder = h.browser(t).do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ann@example.com", "password": "new-password",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

// resetToken pulls the raw token out of the most recent reset email.
func (h *harness) resetToken(t *testing.T) string {
	t.Helper()
	match := resetTokenPattern.FindStringSubmatch(h.mail.Last().Text)
	require.Len(t, match, 2)
	token, err := url.QueryUnescape(match[1])
	require.NoError(t, err)
	return token
}

func newMiniredisLimiter(t *testing.T, limit int) *auth.RedisRequestLimiter {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return auth.NewRedisRequestLimiter(client, constants.RedisPrefixForgotPasswordLimit, limit, 15*time.Minute)
}

/*
TestForgotPassword_RapidRequests rotates the ticket on each request while the
Redis request limiter is wired, so only the newest emailed token verifies.
*/
func TestForgotPassword_RapidRequests(t *testing.T) {
	h := newLimitedHarness(t, newMiniredisLimiter(t, 5))
	visitor := h.browser(t)
	require.Equal(t, http.StatusCreated, visitor.do(http.MethodPost, "/api/auth/signup", signupBody("ann@example.com")).Code)

	require.Equal(t, http.StatusOK, visitor.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ann@example.com"}).Code)
	first := h.resetToken(t)

	h.clock.Advance(5 * time.Second)
	require.Equal(t, http.StatusOK, visitor.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ann@example.com"}).Code)
	second := h.resetToken(t)

	require.Len(t, h.mail.Messages(), 2)

	recorder := visitor.do(http.MethodGet, "/api/auth/reset-password/verify?token="+url.QueryEscape(first), nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, apperr.CodeResetTokenInvalidOrExpired, errorCode(t, recorder))

	recorder = visitor.do(http.MethodGet, "/api/auth/reset-password/verify?token="+url.QueryEscape(second), nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestForgotPassword_ClientLimit answers 429 once a client exhausts its budget
and leaves the outstanding ticket untouched.
*/
func TestForgotPassword_ClientLimit(t *testing.T) {
	h := newLimitedHarness(t, newMiniredisLimiter(t, 2))
	visitor := h.browser(t)
	require.Equal(t, http.StatusCreated, visitor.do(http.MethodPost, "/api/auth/signup", signupBody("ann@example.com")).Code)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, visitor.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ann@example.com"}).Code)
	}
	outstanding := h.resetToken(t)

	recorder := visitor.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ann@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, apperr.CodeRateLimited, errorCode(t, recorder))
	assert.Len(t, h.mail.Messages(), 2)

	recorder = visitor.do(http.MethodGet, "/api/auth/reset-password/verify?token="+url.QueryEscape(outstanding), nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestForgotPassword_DeliveryFailure surfaces the mail failure to the caller.
*/
func TestForgotPassword_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.browser(t).do(http.MethodPost, "/api/auth/signup", signupBody("ann@example.com")).Code)
	h.mail.FailWith = errors.New("smtp: 554 rejected")

	recorder := h.browser(t).do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ann@example.com"})
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, apperr.CodeEmailDeliveryFailed, errorCode(t, recorder))
}

/*
TestUserManagement creates, searches and filters accounts through the staff
directory.
*/
func TestUserManagement(t *testing.T) {
	h := newHarness(t)
	admin := h.browser(t)
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/auth/admin/signup", signupBody("boss@example.com")).Code)

	walkIn := map[string]any{
		"name": "Walk In", "email": "walk.in@example.com", "phoneNumber": "0901234567", "password": "password1",
	}
	recorder := admin.do(http.MethodPost, "/api/users", walkIn)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	assert.Contains(t, recorder.Body.String(), `"roles":["user"]`)
	assert.NotContains(t, recorder.Body.String(), "password1")

	recorder = admin.do(http.MethodPost, "/api/users", walkIn)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, apperr.CodeDuplicateEmail, errorCode(t, recorder))

	recorder = admin.do(http.MethodPost, "/api/admin/users", map[string]any{
		"name": "Walk Out", "email": "walk.out@example.com", "phoneNumber": "0907654321", "password": "password1",
		"roles": []string{"moderator"},
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	assert.Contains(t, recorder.Body.String(), `"roles":["moderator"]`)

	type listBody struct {
		Data []struct {
			Email string `json:"email"`
		} `json:"data"`
	}

	recorder = admin.do(http.MethodGet, "/api/admin/users?name=WALK", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"total":2`)
	listed := decode[listBody](t, recorder)
	require.Len(t, listed.Data, 2)
	assert.Equal(t, "walk.out@example.com", listed.Data[0].Email)
	assert.Equal(t, "walk.in@example.com", listed.Data[1].Email)

	recorder = admin.do(http.MethodGet, "/api/users/search?q=walk&limit=1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	found := decode[listBody](t, recorder)
	require.Len(t, found.Data, 1)
	assert.Equal(t, "walk.in@example.com", found.Data[0].Email)

	recorder = admin.do(http.MethodGet, "/api/admin/users/search?q=", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, apperr.CodeValidation, errorCode(t, recorder))

	customer := h.browser(t)
	require.Equal(t, http.StatusCreated, customer.do(http.MethodPost, "/api/auth/signup", signupBody("ann@example.com")).Code)
	assert.Equal(t, http.StatusForbidden, customer.do(http.MethodPost, "/api/users", walkIn).Code)
}

/*
TestHealthEndpoints reports liveness unconditionally and readiness per dependency.
*/
func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t,
		api.HealthCheck{Name: "mongodb", Check: func(context.Context) error { return nil }},
		api.HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }},
	)
	visitor := h.browser(t)

	assert.Equal(t, http.StatusOK, visitor.do(http.MethodGet, "/health", nil).Code)

	recorder := visitor.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"degraded"`)
	assert.Contains(t, recorder.Body.String(), `"redis"`)
}
