package store

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func postIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "likes.user", Value: 1}}},
		{Keys: bson.D{{Key: "comments.user", Value: 1}}},
		{Keys: bson.D{{Key: "isStaffPick", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
}

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: "text"}}},
		{Keys: bson.D{{Key: "country", Value: 1}}},
	}
}

// EnsureIndexes creates the indexes the post and user queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) error {
	logger.Info("creating indexes", "collection", postsCollection)
	names, err := db.Collection(postsCollection).Indexes().CreateMany(ctx, postIndexes())
	if err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}
	logger.Info("indexes ready", "collection", postsCollection, "indexes", names)

	logger.Info("creating indexes", "collection", usersCollection)
	names, err = db.Collection(usersCollection).Indexes().CreateMany(ctx, userIndexes())
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	logger.Info("indexes ready", "collection", usersCollection, "indexes", names)

	return nil
}
