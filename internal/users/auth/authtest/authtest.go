// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package authtest provides in-memory collaborators for tests of the identity
// services and the HTTP surface built on them.
package authtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/storageup/internal/platform/mailer"
	"github.com/taibuivan/storageup/internal/users/auth"
)

// # Repository

// MemoryUserRepository implements [auth.UserRepository] over a map.
// Every method copies users in and out so callers never share state with the store.
type MemoryUserRepository struct {
	mutex sync.Mutex
	users map[string]*auth.User
	order []string

	// FailWith, when set, is returned by every method.
	FailWith error
}

// NewMemoryUserRepository returns an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*auth.User)}
}

func clone(user *auth.User) *auth.User {
	copied := *user
	copied.Roles = slices.Clone(user.Roles)
	if user.PasswordResetExpires != nil {
		expires := *user.PasswordResetExpires
		copied.PasswordResetExpires = &expires
	}
	return &copied
}

func (repository *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return nil, repository.FailWith
	}
	for _, user := range repository.users {
		if user.Email == email {
			return clone(user), nil
		}
	}
	return nil, fmt.Errorf("find by email: %w", auth.ErrUserNotFound)
}

func (repository *MemoryUserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return nil, repository.FailWith
	}
	user, found := repository.users[id]
	if !found {
		return nil, fmt.Errorf("find by id: %w", auth.ErrUserNotFound)
	}
	return clone(user), nil
}

func (repository *MemoryUserRepository) Create(_ context.Context, user *auth.User) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return repository.FailWith
	}
	for _, existing := range repository.users {
		if existing.Email == user.Email {
			return fmt.Errorf("create: %w", auth.ErrDuplicateEmail)
		}
	}

	stored := clone(user)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	repository.users[user.ID] = stored
	repository.order = append(repository.order, user.ID)
	return nil
}

func (repository *MemoryUserRepository) UpdateProfile(_ context.Context, id string, update auth.ProfileUpdate) (*auth.User, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return nil, repository.FailWith
	}
	user, found := repository.users[id]
	if !found {
		return nil, fmt.Errorf("update profile: %w", auth.ErrUserNotFound)
	}
	update.Apply(user)
	user.UpdatedAt = time.Now()
	return clone(user), nil
}

func (repository *MemoryUserRepository) DeleteByID(_ context.Context, id string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return repository.FailWith
	}
	if _, found := repository.users[id]; !found {
		return fmt.Errorf("delete: %w", auth.ErrUserNotFound)
	}
	delete(repository.users, id)
	repository.order = slices.DeleteFunc(repository.order, func(candidate string) bool { return candidate == id })
	return nil
}

func (repository *MemoryUserRepository) List(_ context.Context, filter auth.ListFilter) ([]*auth.User, int, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return nil, 0, repository.FailWith
	}

	// Insertion order reversed breaks CreatedAt ties newest first.
	ids := make([]string, 0, len(repository.order))
	for index := len(repository.order) - 1; index >= 0; index-- {
		id := repository.order[index]
		if containsFold(repository.users[id].Name, filter.Name) {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return repository.users[ids[i]].CreatedAt.After(repository.users[ids[j]].CreatedAt)
	})

	total := len(ids)
	if filter.Offset >= total {
		return []*auth.User{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)

	page := make([]*auth.User, 0, end-filter.Offset)
	for _, id := range ids[filter.Offset:end] {
		page = append(page, clone(repository.users[id]))
	}
	return page, total, nil
}

func (repository *MemoryUserRepository) Search(_ context.Context, term string, limit int) ([]*auth.User, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return nil, repository.FailWith
	}

	matches := make([]*auth.User, 0)
	for _, id := range repository.order {
		user := repository.users[id]
		if containsFold(user.Name, term) || containsFold(user.Email, term) {
			matches = append(matches, clone(user))
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func containsFold(value, term string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(term))
}

func (repository *MemoryUserRepository) SetResetTicket(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return repository.FailWith
	}
	user, found := repository.users[id]
	if !found {
		return fmt.Errorf("set reset ticket: %w", auth.ErrUserNotFound)
	}
	user.PasswordResetToken = tokenHash
	user.PasswordResetExpires = &expiresAt
	return nil
}

func (repository *MemoryUserRepository) ClearResetTicket(_ context.Context, id string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return repository.FailWith
	}
	user, found := repository.users[id]
	if !found {
		return fmt.Errorf("clear reset ticket: %w", auth.ErrUserNotFound)
	}
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	return nil
}

func (repository *MemoryUserRepository) FindByResetTokenHash(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return nil, repository.FailWith
	}
	if user := repository.ticketHolder(tokenHash, now); user != nil {
		return clone(user), nil
	}
	return nil, fmt.Errorf("find by reset token: %w", auth.ErrUserNotFound)
}

func (repository *MemoryUserRepository) RedeemResetTicket(_ context.Context, tokenHash string, now time.Time, newPasswordHash string) (*auth.User, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if repository.FailWith != nil {
		return nil, repository.FailWith
	}
	user := repository.ticketHolder(tokenHash, now)
	if user == nil {
		return nil, fmt.Errorf("redeem reset ticket: %w", auth.ErrUserNotFound)
	}
	user.PasswordHash = newPasswordHash
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	user.UpdatedAt = now
	return clone(user), nil
}

// ticketHolder must be called with the mutex held.
func (repository *MemoryUserRepository) ticketHolder(tokenHash string, now time.Time) *auth.User {
	if tokenHash == "" {
		return nil
	}
	for _, user := range repository.users {
		if user.PasswordResetToken == tokenHash && user.PasswordResetExpires != nil && user.PasswordResetExpires.After(now) {
			return user
		}
	}
	return nil
}

// Snapshot returns a copy of the stored account, or nil.
func (repository *MemoryUserRepository) Snapshot(id string) *auth.User {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()

	if user, found := repository.users[id]; found {
		return clone(user)
	}
	return nil
}

// # Mail

// RecordingMailer implements [auth.MailSender] and keeps every message it accepted.
type RecordingMailer struct {
	mutex    sync.Mutex
	messages []mailer.Message

	// FailWith, when set, makes Send fail without recording.
	FailWith error
}

func (recorder *RecordingMailer) Send(_ context.Context, message mailer.Message) (string, error) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()

	if recorder.FailWith != nil {
		return "", recorder.FailWith
	}
	recorder.messages = append(recorder.messages, message)
	return fmt.Sprintf("<%d@authtest>", len(recorder.messages)), nil
}

// Messages returns the accepted messages in send order.
func (recorder *RecordingMailer) Messages() []mailer.Message {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return slices.Clone(recorder.messages)
}

// Last returns the most recent message. It panics when nothing was sent.
func (recorder *RecordingMailer) Last() mailer.Message {
	messages := recorder.Messages()
	return messages[len(messages)-1]
}

// # Time

// Clock is a settable clock. Keep it on whole seconds: token expiry has
// second precision.
type Clock struct {
	mutex sync.Mutex
	now   time.Time
}

// NewClock returns a clock fixed at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.Truncate(time.Second)}
}

// Now returns the current fake time.
func (clock *Clock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

// Advance moves the clock forward.
func (clock *Clock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.now = clock.now.Add(duration)
}
