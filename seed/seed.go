// Package seed fills an empty database with generated users and posts for
// local development.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stories-service/model"
)

type Options struct {
	Users int
	Posts int
	// StaffPickEvery marks every nth post as a staff pick. Zero disables.
	StaffPickEvery int
	// Span is how far back post dates reach from Now.
	Span time.Duration
	Seed int64
	Now  time.Time
}

func (o *Options) setDefaults() {
	if o.Users <= 0 {
		o.Users = 25
	}
	if o.Posts <= 0 {
		o.Posts = 100
	}
	if o.StaffPickEvery < 0 {
		o.StaffPickEvery = 0
	}
	if o.Span <= 0 {
		o.Span = 60 * 24 * time.Hour
	}
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
}

type Dataset struct {
	Users []model.User
	Posts []model.Post
}

var languages = []string{"English", "Spanish", "French", "German", "Japanese", "Portuguese"}

// Generate builds a dataset. The same Seed and Now give the same content;
// object ids are always fresh.
func Generate(opts Options) Dataset {
	opts.setDefaults()
	f := gofakeit.New(opts.Seed)

	users := make([]model.User, opts.Users)
	for i := range users {
		created := opts.Now.Add(-time.Duration(f.Number(1, int(opts.Span/time.Hour))) * time.Hour)
		users[i] = model.User{
			ID:           primitive.NewObjectID(),
			Name:         f.Name(),
			Email:        f.Email(),
			Country:      f.Country(),
			City:         f.City(),
			Bio:          f.Sentence(12),
			ProfileImage: f.ImageURL(200, 200),
			Languages:    []string{f.RandomString(languages)},
			Role:         model.RoleStudent,
			CreatedAt:    created,
			UpdatedAt:    created,
		}
	}

	posts := make([]model.Post, opts.Posts)
	for i := range posts {
		author := users[f.Number(0, len(users)-1)]
		created := f.DateRange(opts.Now.Add(-opts.Span), opts.Now).UTC()

		post := model.Post{
			ID:          primitive.NewObjectID(),
			User:        author.ID,
			Title:       f.Sentence(f.Number(3, 8)),
			Content:     f.Paragraph(2, 4, 12, "\n\n"),
			Category:    model.Categories[f.Number(0, len(model.Categories)-1)],
			Images:      []string{},
			Likes:       []model.Like{},
			Comments:    []model.Comment{},
			Language:    f.RandomString(languages),
			IsStaffPick: opts.StaffPickEvery > 0 && i%opts.StaffPickEvery == 0,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if f.Bool() {
			post.Images = append(post.Images, f.ImageURL(640, 480))
		}

		likers := indexes(len(users))
		f.ShuffleInts(likers)
		for _, j := range likers[:f.Number(0, min(len(users), 20))] {
			post.Likes = append(post.Likes, model.Like{User: users[j].ID})
		}

		for n := f.Number(0, 4); n > 0; n-- {
			commenter := users[f.Number(0, len(users)-1)]
			date := f.DateRange(created, opts.Now).UTC()
			post.Comments = append(post.Comments, model.Comment{
				ID:           primitive.NewObjectID(),
				User:         commenter.ID,
				Text:         f.Sentence(f.Number(4, 16)),
				Name:         commenter.Name,
				ProfileImage: commenter.ProfileImage,
				Date:         date,
			})
		}
		// newest first, matching how comments are added
		slices.SortStableFunc(post.Comments, func(a, b model.Comment) int {
			return b.Date.Compare(a.Date)
		})

		posts[i] = post
	}

	return Dataset{Users: users, Posts: posts}
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

type UserSink interface {
	InsertUsers(ctx context.Context, users []model.User) error
}

type PostSink interface {
	InsertPosts(ctx context.Context, posts []model.Post) error
}

// Run generates a dataset and writes it to users and posts.
func Run(ctx context.Context, users UserSink, posts PostSink, opts Options, logger *slog.Logger) error {
	data := Generate(opts)

	if err := users.InsertUsers(ctx, data.Users); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if err := posts.InsertPosts(ctx, data.Posts); err != nil {
		return fmt.Errorf("seed posts: %w", err)
	}

	logger.Info("Database seeded", "users", len(data.Users), "posts", len(data.Posts))
	return nil
}
