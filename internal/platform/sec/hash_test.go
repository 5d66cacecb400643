// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/storageup/internal/platform/sec"
)

/*
TestHasher_RoundTrip verifies a password against its own hash and rejects others.
*/
func TestHasher_RoundTrip(t *testing.T) {
	hasher := sec.NewHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, hasher.Verify("s3cret-pass", hash))
	assert.False(t, hasher.Verify("wrong-pass", hash))
	assert.False(t, hasher.Verify("s3cret-pass", "not-a-bcrypt-hash"))
}

/*
TestHasher_SaltsEachHash ensures two hashes of the same input differ.
*/
func TestHasher_SaltsEachHash(t *testing.T) {
	hasher := sec.NewHasher(bcrypt.MinCost)

	first, err := hasher.Hash("same")
	require.NoError(t, err)
	second, err := hasher.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

/*
TestNewHasher_ClampsCost keeps the work factor inside bcrypt's accepted range.
*/
func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, sec.DefaultHashCost, sec.NewHasher(0).Cost())
	assert.Equal(t, bcrypt.MinCost, sec.NewHasher(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, sec.NewHasher(99).Cost())
	assert.Equal(t, 12, sec.NewHasher(12).Cost())
}

/*
TestGenerateSecureToken checks length and uniqueness of reset tokens.
*/
func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)
}

/*
TestHashToken is deterministic and never echoes the raw value.
*/
func TestHashToken(t *testing.T) {
	raw := "abc123"

	assert.Equal(t, sec.HashToken(raw), sec.HashToken(raw))
	assert.NotEqual(t, raw, sec.HashToken(raw))
	assert.Len(t, sec.HashToken(raw), 64)
	assert.NotEqual(t, sec.HashToken("abc124"), sec.HashToken(raw))
}
