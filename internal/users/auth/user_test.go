// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/storageup/internal/platform/sec"
	"github.com/taibuivan/storageup/internal/users/auth"
)

/*
TestUser_JSONHidesSecrets never serializes the password hash or reset ticket.
*/
func TestUser_JSONHidesSecrets(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	user := &auth.User{
		ID:                   "u-1",
		Email:                "ann@example.com",
		PasswordHash:         "$2a$10$secret",
		Roles:                sec.RoleSet{sec.RoleUser},
		PasswordResetToken:   "ticket-hash",
		PasswordResetExpires: &expires,
	}

	encoded, err := json.Marshal(user)
	require.NoError(t, err)

	assert.NotContains(t, string(encoded), "secret")
	assert.NotContains(t, string(encoded), "ticket-hash")
	assert.Contains(t, string(encoded), `"roles":["user"]`)
}

/*
TestProfileUpdate_Apply copies only the fields that were provided.
*/
func TestProfileUpdate_Apply(t *testing.T) {
	user := &auth.User{Name: "Ann", City: "Hanoi", Roles: sec.RoleSet{sec.RoleUser}}
	city := "Da Nang"

	update := auth.ProfileUpdate{City: &city}
	assert.False(t, update.Empty())
	update.Apply(user)

	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, "Da Nang", user.City)
	assert.Equal(t, sec.RoleSet{sec.RoleUser}, user.Roles)
	assert.True(t, auth.ProfileUpdate{}.Empty())
}

/*
TestNormalizeEmail trims and lowercases.
*/
func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", auth.NormalizeEmail("  Ann@Example.COM\t"))
}
