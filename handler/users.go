package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"stories-service/middleware"
	"stories-service/model"
	"stories-service/store"
)

type UserHandler struct {
	base
	posts PostRepository
	users UserRepository
}

func NewUserHandler(posts PostRepository, users UserRepository, timeout time.Duration, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		base:  base{timeout: timeout, logger: logger.With("component", "handler.UserHandler")},
		posts: posts,
		users: users,
	}
}

// GetMapData handles GET /map-data: users per country with the newest post
// written from each country.
func (h *UserHandler) GetMapData(c *gin.Context) {
	ctx, cancel := h.query(c)
	defer cancel()

	groups, err := h.users.UsersByCountry(ctx)
	if err != nil {
		h.fail(c, err, "Country")
		return
	}

	countries := make([]model.CountryStats, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, group := range groups {
		g.Go(func() error {
			stats := model.CountryStats{Name: group.Name, Count: group.Count}
			post, err := h.posts.LatestPostBy(gctx, group.UserIDs)
			switch {
			case err == nil:
				stats.PostID = &post.ID
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
			countries[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.fail(c, err, "Country")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "countries": countries})
}

// GetUserStats handles GET /auth/stats.
func (h *UserHandler) GetUserStats(c *gin.Context) {
	ctx, cancel := h.query(c)
	defer cancel()

	var stats model.UserStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = h.users.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.UniqueCountries, err = h.users.CountCountries(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalPosts, err = h.posts.CountPosts(gctx, store.PostFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(c, err, "Stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"totalPosts":      stats.TotalPosts,
		"totalUsers":      stats.TotalUsers,
		"uniqueCountries": stats.UniqueCountries,
	})
}

// GetCurrentUser handles GET /auth/me.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	user, ok := middleware.UserFrom(c)
	if !ok {
		h.fail(c, store.ErrNotFound, "User")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}
