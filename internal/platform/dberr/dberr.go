// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr classifies low-level driver errors from both credential store
// drivers into a small set of storage sentinels.
//
// Repositories return these sentinels (wrapped with context). Services map
// them onto [apperr.AppError] values, so neither pgx nor the Mongo driver
// leaks past the storage layer.
package dberr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint breach.
const uniqueViolation = "23505"

var (
	// ErrNotFound is returned when a queried row or document doesn't exist.
	ErrNotFound = errors.New("dberr: not found")

	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("dberr: duplicate key")

	// ErrTimeout is returned when the operation exceeded its deadline.
	ErrTimeout = errors.New("dberr: timeout")
)

// Wrap inspects a driver error and tags it with the matching sentinel.
// Unclassified errors are returned wrapped with the action name only.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", action, ErrNotFound)

	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", action, ErrDuplicate)

	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return fmt.Errorf("%s: %w: %w", action, ErrTimeout, err)
	}

	return fmt.Errorf("%s: %w", action, err)
}

// IsNotFound reports whether err carries [ErrNotFound].
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicate reports whether err carries [ErrDuplicate].
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// IsTimeout reports whether err carries [ErrTimeout] or a bare deadline error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func isUniqueViolation(err error) bool {
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		return pgError.Code == uniqueViolation
	}
	return mongo.IsDuplicateKeyError(err)
}
