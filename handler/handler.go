package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stories-service/model"
	"stories-service/ranking"
	"stories-service/store"
)

type PostRepository interface {
	FindPosts(ctx context.Context, f store.PostFilter) ([]model.Post, error)
	CountPosts(ctx context.Context, f store.PostFilter) (int64, error)
	FindPostByID(ctx context.Context, id primitive.ObjectID) (*model.Post, error)
	LatestPostBy(ctx context.Context, authors []primitive.ObjectID) (*model.Post, error)
	CreatePost(ctx context.Context, post *model.Post) error
	UpdatePost(ctx context.Context, id primitive.ObjectID, u store.PostUpdate) (*model.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	AddComment(ctx context.Context, id primitive.ObjectID, c model.Comment) (*model.Post, error)
	RemoveComment(ctx context.Context, id, commentID primitive.ObjectID) (*model.Post, error)
	ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (*model.Post, error)
}

type UserRepository interface {
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.User, error)
	UsersByCountry(ctx context.Context) ([]store.CountryGroup, error)
	CountUsers(ctx context.Context) (int64, error)
	CountCountries(ctx context.Context) (int64, error)
}

type Ranker interface {
	RankPopularPosts(ctx context.Context, window ranking.TimeWindow, limit int) ([]model.RankedPost, error)
}

// base carries what every handler needs.
type base struct {
	timeout time.Duration
	logger  *slog.Logger
}

func (b base) query(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), b.timeout)
}

// fail maps err to a JSON error response. what names the missing resource in
// 404 bodies.
func (b base) fail(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": what + " not found"})
	case errors.Is(err, store.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid id"})
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		c.Status(499)
	default:
		b.logger.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Server error"})
	}
}

// queryInt parses a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// attachAuthors fills in the public author of each post.
func attachAuthors(ctx context.Context, users UserRepository, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := lo.Uniq(lo.Map(posts, func(p *model.Post, _ int) primitive.ObjectID { return p.User }))
	found, err := users.FindUsersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		if u, ok := found[p.User]; ok {
			p.Author = u.AsAuthor()
		}
	}
	return nil
}

func postRefs(posts []model.Post) []*model.Post {
	refs := make([]*model.Post, len(posts))
	for i := range posts {
		refs[i] = &posts[i]
	}
	return refs
}
