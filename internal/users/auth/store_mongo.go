// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/taibuivan/storageup/internal/platform/constants"
	"github.com/taibuivan/storageup/internal/platform/dberr"
)

// Document field names.
const (
	docName         = "name"
	docEmail        = "email"
	docPassword     = "password"
	docRoles        = "roles"
	docResetToken   = "passwordResetToken"
	docResetExpires = "passwordResetExpires"
	docUpdatedAt    = "updatedAt"
	docCreatedAt    = "createdAt"
)

// MongoUserRepository implements [UserRepository] on a MongoDB collection.
type MongoUserRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoUserRepository binds the repository to the users collection of database.
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		collection: database.Collection(constants.CollectionUsers),
		now:        time.Now,
	}
}

/*
EnsureIndexes creates the unique email index and the reset token lookup index.

Description: Idempotent. Called once at startup before the server accepts traffic.
*/
func (repository *MongoUserRepository) EnsureIndexes(context context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: docEmail, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: docResetToken, Value: 1}},
			Options: options.Index().SetSparse(true).SetName("reset_token_lookup"),
		},
	}

	if _, err := repository.collection.Indexes().CreateMany(context, models); err != nil {
		return fmt.Errorf("mongo_user_ensure_indexes_failed: %w", err)
	}
	return nil
}

// # Lookups

func (repository *MongoUserRepository) findOne(context context.Context, filter bson.D, action string) (*User, error) {
	var user User
	if err := repository.collection.FindOne(context, filter).Decode(&user); err != nil {
		return nil, classify(err, action)
	}
	return &user, nil
}

// FindByEmail returns the account registered under email.
func (repository *MongoUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	return repository.findOne(context, bson.D{{Key: docEmail, Value: email}}, "mongo_user_find_by_email")
}

// FindByID returns the account with the given ID.
func (repository *MongoUserRepository) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, bson.D{{Key: "_id", Value: id}}, "mongo_user_find_by_id")
}

// FindByResetTokenHash returns the account holding an unexpired ticket for tokenHash.
func (repository *MongoUserRepository) FindByResetTokenHash(context context.Context, tokenHash string, now time.Time) (*User, error) {
	return repository.findOne(context, resetTicketFilter(tokenHash, now), "mongo_user_find_by_reset_token")
}

// List returns one page of accounts, newest first.
func (repository *MongoUserRepository) List(context context.Context, filter ListFilter) ([]*User, int, error) {
	query := bson.D{}
	if filter.Name != "" {
		query = bson.D{{Key: docName, Value: containsIgnoreCase(filter.Name)}}
	}

	total, err := repository.collection.CountDocuments(context, query)
	if err != nil {
		return nil, 0, classify(err, "mongo_user_count")
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: docCreatedAt, Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))

	users, err := repository.findMany(context, query, findOptions, "mongo_user_list")
	if err != nil {
		return nil, 0, err
	}

	return users, int(total), nil
}

// Search matches term against name or email, ignoring case, ordered by name.
func (repository *MongoUserRepository) Search(context context.Context, term string, limit int) ([]*User, error) {
	pattern := containsIgnoreCase(term)
	query := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: docName, Value: pattern}},
		bson.D{{Key: docEmail, Value: pattern}},
	}}}

	findOptions := options.Find().
		SetSort(bson.D{{Key: docName, Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	return repository.findMany(context, query, findOptions, "mongo_user_search")
}

func (repository *MongoUserRepository) findMany(
	context context.Context,
	filter bson.D,
	findOptions *options.FindOptionsBuilder,
	action string,
) ([]*User, error) {
	cursor, err := repository.collection.Find(context, filter, findOptions)
	if err != nil {
		return nil, classify(err, action)
	}

	users := make([]*User, 0)
	if err := cursor.All(context, &users); err != nil {
		return nil, classify(err, action+"_decode")
	}

	return users, nil
}

// containsIgnoreCase matches values holding term literally, ignoring case.
func containsIgnoreCase(term string) bson.Regex {
	return bson.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
}

// # Writes

// Create inserts a new account document.
func (repository *MongoUserRepository) Create(context context.Context, user *User) error {
	now := repository.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := repository.collection.InsertOne(context, user); err != nil {
		return classify(err, "mongo_user_create")
	}
	return nil
}

// UpdateProfile applies the allow-listed fields that are set on update.
func (repository *MongoUserRepository) UpdateProfile(context context.Context, id string, update ProfileUpdate) (*User, error) {
	set := bson.D{{Key: docUpdatedAt, Value: repository.now().UTC()}}

	fields := []struct {
		name  string
		value *string
	}{
		{"name", update.Name},
		{"phoneNumber", update.PhoneNumber},
		{"address_line_one", update.AddressLineOne},
		{"address_line_two", update.AddressLineTwo},
		{"city", update.City},
		{"state_province", update.StateProvince},
		{"zip_code", update.ZipCode},
		{"language", update.Language},
	}
	for _, field := range fields {
		if field.value != nil {
			set = append(set, bson.E{Key: field.name, Value: *field.value})
		}
	}
	if len(update.Roles) > 0 {
		set = append(set, bson.E{Key: docRoles, Value: update.Roles.Strings()})
	}

	return repository.findOneAndUpdate(context,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		"mongo_user_update_profile",
	)
}

// DeleteByID removes the account document.
func (repository *MongoUserRepository) DeleteByID(context context.Context, id string) error {
	result, err := repository.collection.DeleteOne(context, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return classify(err, "mongo_user_delete")
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("mongo_user_delete: %w", ErrUserNotFound)
	}
	return nil
}

// SetResetTicket overwrites the reset ticket on the account.
func (repository *MongoUserRepository) SetResetTicket(context context.Context, id, tokenHash string, expiresAt time.Time) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: docResetToken, Value: tokenHash},
		{Key: docResetExpires, Value: expiresAt.UTC()},
		{Key: docUpdatedAt, Value: repository.now().UTC()},
	}}}

	return repository.updateOne(context, bson.D{{Key: "_id", Value: id}}, update, "mongo_user_set_reset_ticket")
}

// ClearResetTicket unsets both reset ticket fields.
func (repository *MongoUserRepository) ClearResetTicket(context context.Context, id string) error {
	update := bson.D{
		{Key: "$unset", Value: bson.D{{Key: docResetToken, Value: ""}, {Key: docResetExpires, Value: ""}}},
		{Key: "$set", Value: bson.D{{Key: docUpdatedAt, Value: repository.now().UTC()}}},
	}

	return repository.updateOne(context, bson.D{{Key: "_id", Value: id}}, update, "mongo_user_clear_reset_ticket")
}

// RedeemResetTicket swaps the password hash and clears the ticket atomically.
func (repository *MongoUserRepository) RedeemResetTicket(context context.Context, tokenHash string, now time.Time, newPasswordHash string) (*User, error) {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: docPassword, Value: newPasswordHash},
			{Key: docUpdatedAt, Value: repository.now().UTC()},
		}},
		{Key: "$unset", Value: bson.D{{Key: docResetToken, Value: ""}, {Key: docResetExpires, Value: ""}}},
	}

	return repository.findOneAndUpdate(context, resetTicketFilter(tokenHash, now), update, "mongo_user_redeem_reset_ticket")
}

// # Helpers

func (repository *MongoUserRepository) updateOne(context context.Context, filter, update bson.D, action string) error {
	result, err := repository.collection.UpdateOne(context, filter, update)
	if err != nil {
		return classify(err, action)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", action, ErrUserNotFound)
	}
	return nil
}

func (repository *MongoUserRepository) findOneAndUpdate(context context.Context, filter, update bson.D, action string) (*User, error) {
	updateOptions := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user User
	if err := repository.collection.FindOneAndUpdate(context, filter, update, updateOptions).Decode(&user); err != nil {
		return nil, classify(err, action)
	}
	return &user, nil
}

func resetTicketFilter(tokenHash string, now time.Time) bson.D {
	return bson.D{
		{Key: docResetToken, Value: tokenHash},
		{Key: docResetExpires, Value: bson.D{{Key: "$gt", Value: now.UTC()}}},
	}
}

// classify maps driver errors onto the repository sentinels.
// Timeouts keep [dberr.ErrTimeout] in the chain so the gate can answer 503.
func classify(err error, action string) error {
	wrapped := dberr.Wrap(err, action)
	switch {
	case dberr.IsNotFound(wrapped):
		return fmt.Errorf("%s: %w", action, ErrUserNotFound)
	case dberr.IsDuplicate(wrapped):
		return fmt.Errorf("%s: %w", action, ErrDuplicateEmail)
	}
	return wrapped
}
