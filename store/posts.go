package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stories-service/metrics"
	"stories-service/model"
)

const postsCollection = "posts"

// PostStore persists posts in MongoDB.
type PostStore struct {
	coll *mongo.Collection
}

func NewPostStore(db *mongo.Database) *PostStore {
	return &PostStore{coll: db.Collection(postsCollection)}
}

// FindPosts returns the posts matching f.
func (s *PostStore) FindPosts(ctx context.Context, f PostFilter) ([]model.Post, error) {
	start := time.Now()

	cursor, err := s.coll.Find(ctx, f.query(), f.findOptions())
	if err != nil {
		metrics.ObserveMongo("find", postsCollection, start, err)
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []model.Post{}
	err = cursor.All(ctx, &posts)
	metrics.ObserveMongo("find", postsCollection, start, err)
	if err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

// CountPosts counts the posts matching f, ignoring paging.
func (s *PostStore) CountPosts(ctx context.Context, f PostFilter) (int64, error) {
	start := time.Now()

	n, err := s.coll.CountDocuments(ctx, f.query())
	metrics.ObserveMongo("count", postsCollection, start, err)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// FindPostByID returns ErrNotFound when no post has the given id.
func (s *PostStore) FindPostByID(ctx context.Context, id primitive.ObjectID) (*model.Post, error) {
	start := time.Now()

	var post model.Post
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	metrics.ObserveMongo("findOne", postsCollection, start, ignoreNoDocuments(err))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post %s: %w", id.Hex(), err)
	}
	return &post, nil
}

// LatestPostBy returns the newest post written by any of the given authors.
func (s *PostStore) LatestPostBy(ctx context.Context, authors []primitive.ObjectID) (*model.Post, error) {
	posts, err := s.FindPosts(ctx, PostFilter{Authors: authors, SortNewest: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return &posts[0], nil
}

// CreatePost inserts post, filling in its id and timestamps.
func (s *PostStore) CreatePost(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Images == nil {
		post.Images = []string{}
	}
	if post.Likes == nil {
		post.Likes = []model.Like{}
	}
	if post.Comments == nil {
		post.Comments = []model.Comment{}
	}

	_, err := s.coll.InsertOne(ctx, post)
	metrics.ObserveMongo("insert", postsCollection, now, err)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// PostUpdate holds the editable fields of a post. Nil fields are left alone.
type PostUpdate struct {
	Title    *string
	Content  *string
	Category *model.Category
	Language *string
}

// UpdatePost applies u and returns the updated post.
func (s *PostStore) UpdatePost(ctx context.Context, id primitive.ObjectID, u PostUpdate) (*model.Post, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Content != nil {
		set["content"] = *u.Content
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Language != nil {
		set["language"] = *u.Language
	}
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": set})
}

// DeletePost removes a post by id.
func (s *PostStore) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	start := time.Now()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	metrics.ObserveMongo("delete", postsCollection, start, err)
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddComment prepends c to the post's comments and returns the updated post.
func (s *PostStore) AddComment(ctx context.Context, id primitive.ObjectID, c model.Comment) (*model.Post, error) {
	update := bson.M{
		"$push": bson.M{"comments": bson.M{"$each": bson.A{c}, "$position": 0}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.findOneAndUpdate(ctx, id, update)
}

// RemoveComment deletes a comment from the post and returns the updated post.
func (s *PostStore) RemoveComment(ctx context.Context, id, commentID primitive.ObjectID) (*model.Post, error) {
	update := bson.M{
		"$pull": bson.M{"comments": bson.M{"_id": commentID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.findOneAndUpdate(ctx, id, update)
}

// ToggleLike removes the user's like if present and adds it otherwise.
func (s *PostStore) ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (*model.Post, error) {
	post, err := s.findOneAndUpdate(ctx, id, bson.M{"$pull": bson.M{"likes": bson.M{"user": userID}}}, returnBefore())
	if err != nil {
		return nil, err
	}
	if post.LikedBy(userID) {
		return s.FindPostByID(ctx, id)
	}

	// $addToSet keeps likes free of duplicate users when two toggles race.
	update := bson.M{
		"$addToSet": bson.M{"likes": model.Like{User: userID}},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.findOneAndUpdate(ctx, id, update)
}

type findOneAndUpdateOpt func(*options.FindOneAndUpdateOptions)

func returnBefore() findOneAndUpdateOpt {
	return func(o *options.FindOneAndUpdateOptions) {
		o.SetReturnDocument(options.Before)
	}
}

func (s *PostStore) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M, opts ...findOneAndUpdateOpt) (*model.Post, error) {
	start := time.Now()

	o := options.FindOneAndUpdate().SetReturnDocument(options.After)
	for _, opt := range opts {
		opt(o)
	}

	var post model.Post
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, o).Decode(&post)
	metrics.ObserveMongo("findOneAndUpdate", postsCollection, start, ignoreNoDocuments(err))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update post %s: %w", id.Hex(), err)
	}
	return &post, nil
}

// InsertPosts bulk-inserts posts as given. Used by the seed command.
func (s *PostStore) InsertPosts(ctx context.Context, posts []model.Post) error {
	docs := make([]interface{}, len(posts))
	for i := range posts {
		docs[i] = posts[i]
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert posts: %w", err)
	}
	return nil
}
