// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost matches the bcrypt cost the account records were created with.
const DefaultHashCost = bcrypt.DefaultCost

// Hasher performs salted, adaptive one-way hashing of login credentials.
type Hasher struct {
	cost int
}

// NewHasher returns a [Hasher] using cost, clamped to the bcrypt bounds.
// A zero cost selects [DefaultHashCost].
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = DefaultHashCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost reports the work factor used for new hashes.
func (hasher *Hasher) Cost() int {
	return hasher.cost
}

// Hash hashes a plain-text password using the bcrypt algorithm.
func (hasher *Hasher) Hash(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), hasher.cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with its hashed version.
// Any error, including a malformed hash, counts as a mismatch.
func (hasher *Hasher) Verify(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}
