package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"stories-service/metrics"
	"stories-service/model"
)

const usersCollection = "users"

// UserStore reads users from MongoDB.
type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(usersCollection)}
}

// FindUserByID returns ErrNotFound when no user has the given id.
func (s *UserStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	start := time.Now()

	var user model.User
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	metrics.ObserveMongo("findOne", usersCollection, start, ignoreNoDocuments(err))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id.Hex(), err)
	}
	return &user, nil
}

// FindUsersByIDs returns the users with the given ids, keyed by id.
func (s *UserStore) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.User, error) {
	users := make(map[primitive.ObjectID]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	start := time.Now()
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		metrics.ObserveMongo("find", usersCollection, start, err)
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	var found []model.User
	err = cursor.All(ctx, &found)
	metrics.ObserveMongo("find", usersCollection, start, err)
	if err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for i := range found {
		users[found[i].ID] = &found[i]
	}
	return users, nil
}

// CountryGroup is a set of users sharing a country.
type CountryGroup struct {
	Name    string               `bson:"name"`
	Count   int64                `bson:"count"`
	UserIDs []primitive.ObjectID `bson:"userIds"`
}

// UsersByCountry groups users with a non-empty country, largest group first.
func (s *UserStore) UsersByCountry(ctx context.Context) ([]CountryGroup, error) {
	start := time.Now()

	pipeline := []bson.M{
		{"$match": bson.M{"country": bson.M{"$nin": bson.A{nil, ""}}}},
		{"$group": bson.M{
			"_id":     "$country",
			"count":   bson.M{"$sum": 1},
			"userIds": bson.M{"$push": "$_id"},
		}},
		{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
		{"$project": bson.M{"name": "$_id", "count": 1, "userIds": 1, "_id": 0}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		metrics.ObserveMongo("aggregate", usersCollection, start, err)
		return nil, fmt.Errorf("aggregate users by country: %w", err)
	}
	defer cursor.Close(ctx)

	groups := []CountryGroup{}
	err = cursor.All(ctx, &groups)
	metrics.ObserveMongo("aggregate", usersCollection, start, err)
	if err != nil {
		return nil, fmt.Errorf("decode country groups: %w", err)
	}
	return groups, nil
}

// CountUsers returns the total number of users.
func (s *UserStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountCountries returns the number of distinct non-empty countries.
func (s *UserStore) CountCountries(ctx context.Context) (int64, error) {
	values, err := s.coll.Distinct(ctx, "country", bson.M{"country": bson.M{"$nin": bson.A{nil, ""}}})
	if err != nil {
		return 0, fmt.Errorf("distinct countries: %w", err)
	}
	return int64(len(values)), nil
}

// InsertUsers bulk-inserts users. Used by the seed command.
func (s *UserStore) InsertUsers(ctx context.Context, users []model.User) error {
	docs := make([]interface{}, len(users))
	for i := range users {
		docs[i] = users[i]
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert users: %w", err)
	}
	return nil
}
