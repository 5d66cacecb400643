// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/taibuivan/storageup/internal/platform/dberr"
)

/*
TestWrap classifies driver errors from both store drivers.
*/
func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, dberr.Wrap(nil, "find user"))
	})

	t.Run("no rows", func(t *testing.T) {
		assert.True(t, dberr.IsNotFound(dberr.Wrap(pgx.ErrNoRows, "find user")))
	})

	t.Run("no documents", func(t *testing.T) {
		assert.True(t, dberr.IsNotFound(dberr.Wrap(mongo.ErrNoDocuments, "find user")))
	})

	t.Run("unique violation", func(t *testing.T) {
		err := dberr.Wrap(&pgconn.PgError{Code: "23505"}, "create user")
		assert.True(t, dberr.IsDuplicate(err))
		assert.False(t, dberr.IsNotFound(err))
	})

	t.Run("other constraint", func(t *testing.T) {
		err := dberr.Wrap(&pgconn.PgError{Code: "23514"}, "create user")
		assert.False(t, dberr.IsDuplicate(err))
	})

	t.Run("deadline", func(t *testing.T) {
		err := dberr.Wrap(context.DeadlineExceeded, "find user")
		assert.True(t, dberr.IsTimeout(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("unknown keeps cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := dberr.Wrap(cause, "find user")
		assert.ErrorIs(t, err, cause)
		assert.False(t, dberr.IsNotFound(err))
		assert.False(t, dberr.IsTimeout(err))
	})
}
