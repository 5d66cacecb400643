// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/storageup/internal/platform/sec"
)

// # User Repository

// PostgresUserRepository implements [UserRepository] on the users.account table.
//
// # Error Mapping
//
// Driver errors (pgx.ErrNoRows, SQLSTATE 23505) are classified through dberr
// and surfaced as [ErrUserNotFound] or [ErrDuplicateEmail].
type PostgresUserRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresUserRepository creates a PostgreSQL implementation of [UserRepository].
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool, now: time.Now}
}

// userColumns is the projection shared by every SELECT and RETURNING clause.
const userColumns = `id, name, email, phonenumber, passwordhash, roles,
	addresslineone, addresslinetwo, city, stateprovince, zipcode, language,
	passwordresettoken, passwordresetexpires, createdat, updatedat`

// scanUser hydrates a [User] from a row produced with [userColumns].
func scanUser(row pgx.Row) (*User, error) {
	var (
		user       User
		roles      []string
		resetToken *string
	)

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PhoneNumber,
		&user.PasswordHash,
		&roles,
		&user.AddressLineOne,
		&user.AddressLineTwo,
		&user.City,
		&user.StateProvince,
		&user.ZipCode,
		&user.Language,
		&resetToken,
		&user.PasswordResetExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Roles = sec.RolesFromStrings(roles)
	if resetToken != nil {
		user.PasswordResetToken = *resetToken
	}

	return &user, nil
}

/*
Create persists a new account row.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: ErrDuplicateEmail or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, name, email, phonenumber, passwordhash, roles,
			addresslineone, addresslinetwo, city, stateprovince, zipcode, language,
			createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	now := repository.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Name,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		user.Roles.Strings(),
		user.AddressLineOne,
		user.AddressLineTwo,
		user.City,
		user.StateProvince,
		user.ZipCode,
		user.Language,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return classify(err, "postgres_user_create")
	}

	return nil
}

// FindByEmail retrieves an account by its normalized email.
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE email = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, email))
	if err != nil {
		return nil, classify(err, "postgres_user_find_by_email")
	}
	return user, nil
}

// FindByID retrieves an account by primary key.
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE id = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, classify(err, "postgres_user_find_by_id")
	}
	return user, nil
}

/*
FindByResetTokenHash retrieves the account holding an unexpired ticket.

Parameters:
  - context: context.Context
  - tokenHash: string (hex SHA-256 of the raw token)
  - now: time.Time (the ticket must expire strictly after now)

Returns:
  - *User: Hydrated account entity
  - error: ErrUserNotFound or database errors
*/
func (repository *PostgresUserRepository) FindByResetTokenHash(context context.Context, tokenHash string, now time.Time) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users.account
		WHERE passwordresettoken = $1 AND passwordresetexpires > $2`

	user, err := scanUser(repository.pool.QueryRow(context, query, tokenHash, now.UTC()))
	if err != nil {
		return nil, classify(err, "postgres_user_find_by_reset_token")
	}
	return user, nil
}

// List returns one page of accounts, newest first.
func (repository *PostgresUserRepository) List(context context.Context, filter ListFilter) ([]*User, int, error) {
	namePattern := containsPattern(filter.Name)

	var total int
	countQuery := `SELECT count(*) FROM users.account WHERE name ILIKE $1`
	if err := repository.pool.QueryRow(context, countQuery, namePattern).Scan(&total); err != nil {
		return nil, 0, classify(err, "postgres_user_count")
	}

	query := `SELECT ` + userColumns + `
		FROM users.account
		WHERE name ILIKE $1
		ORDER BY createdat DESC, id DESC
		OFFSET $2 LIMIT $3`

	users, err := repository.queryUsers(context, "postgres_user_list", query, namePattern, filter.Offset, filter.Limit)
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Search matches term against name or email, ignoring case, ordered by name.
func (repository *PostgresUserRepository) Search(context context.Context, term string, limit int) ([]*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users.account
		WHERE name ILIKE $1 OR email ILIKE $1
		ORDER BY name, id
		LIMIT $2`

	return repository.queryUsers(context, "postgres_user_search", query, containsPattern(term), limit)
}

func (repository *PostgresUserRepository) queryUsers(context context.Context, action, query string, arguments ...any) ([]*User, error) {
	rows, err := repository.pool.Query(context, query, arguments...)
	if err != nil {
		return nil, classify(err, action)
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, classify(err, action+"_scan")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, action+"_rows")
	}

	return users, nil
}

// likeEscaper neutralizes ILIKE wildcards in user input.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term anywhere in the value.
// An empty term matches every row.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

/*
UpdateProfile applies the allow-listed fields that are set on update.

Description: Unset fields are passed as NULL and kept through COALESCE, so a
single statement serves any combination of changes.
*/
func (repository *PostgresUserRepository) UpdateProfile(context context.Context, id string, update ProfileUpdate) (*User, error) {
	query := `
		UPDATE users.account SET
			name           = COALESCE($2, name),
			phonenumber    = COALESCE($3, phonenumber),
			addresslineone = COALESCE($4, addresslineone),
			addresslinetwo = COALESCE($5, addresslinetwo),
			city           = COALESCE($6, city),
			stateprovince  = COALESCE($7, stateprovince),
			zipcode        = COALESCE($8, zipcode),
			language       = COALESCE($9, language),
			roles          = COALESCE($10::text[], roles),
			updatedat      = $11
		WHERE id = $1
		RETURNING ` + userColumns

	var roles any
	if len(update.Roles) > 0 {
		roles = update.Roles.Strings()
	}

	row := repository.pool.QueryRow(context, query,
		id,
		update.Name,
		update.PhoneNumber,
		update.AddressLineOne,
		update.AddressLineTwo,
		update.City,
		update.StateProvince,
		update.ZipCode,
		update.Language,
		roles,
		repository.now().UTC(),
	)

	user, err := scanUser(row)
	if err != nil {
		return nil, classify(err, "postgres_user_update_profile")
	}
	return user, nil
}

// DeleteByID removes the account row.
func (repository *PostgresUserRepository) DeleteByID(context context.Context, id string) error {
	tag, err := repository.pool.Exec(context, `DELETE FROM users.account WHERE id = $1`, id)
	if err != nil {
		return classify(err, "postgres_user_delete")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres_user_delete: %w", ErrUserNotFound)
	}
	return nil
}

// SetResetTicket overwrites the reset ticket columns.
func (repository *PostgresUserRepository) SetResetTicket(context context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users.account
		SET passwordresettoken = $2, passwordresetexpires = $3, updatedat = $4
		WHERE id = $1`

	return repository.execOne(context, "postgres_user_set_reset_ticket", query,
		id, tokenHash, expiresAt.UTC(), repository.now().UTC())
}

// ClearResetTicket nulls both reset ticket columns.
func (repository *PostgresUserRepository) ClearResetTicket(context context.Context, id string) error {
	const query = `
		UPDATE users.account
		SET passwordresettoken = NULL, passwordresetexpires = NULL, updatedat = $2
		WHERE id = $1`

	return repository.execOne(context, "postgres_user_clear_reset_ticket", query, id, repository.now().UTC())
}

/*
RedeemResetTicket swaps the password hash and clears the ticket in one statement.

Description: The WHERE clause repeats the lookup predicate, so once one
redemption commits the row no longer matches and any concurrent or later
redemption returns ErrUserNotFound.
*/
func (repository *PostgresUserRepository) RedeemResetTicket(context context.Context, tokenHash string, now time.Time, newPasswordHash string) (*User, error) {
	query := `
		UPDATE users.account
		SET passwordhash = $3,
			passwordresettoken = NULL,
			passwordresetexpires = NULL,
			updatedat = $4
		WHERE passwordresettoken = $1 AND passwordresetexpires > $2
		RETURNING ` + userColumns

	row := repository.pool.QueryRow(context, query, tokenHash, now.UTC(), newPasswordHash, repository.now().UTC())

	user, err := scanUser(row)
	if err != nil {
		return nil, classify(err, "postgres_user_redeem_reset_ticket")
	}
	return user, nil
}

func (repository *PostgresUserRepository) execOne(context context.Context, action, query string, arguments ...any) error {
	tag, err := repository.pool.Exec(context, query, arguments...)
	if err != nil {
		return classify(err, action)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", action, ErrUserNotFound)
	}
	return nil
}
