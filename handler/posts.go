package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stories-service/middleware"
	"stories-service/model"
	"stories-service/ranking"
	"stories-service/store"
)

const (
	defaultPopularLimit = 3
	defaultPageSize     = 10
	maxPageSize         = 100
	defaultLanguage     = "English"
)

type PostHandler struct {
	base
	posts  PostRepository
	users  UserRepository
	ranker Ranker
}

func NewPostHandler(posts PostRepository, users UserRepository, ranker Ranker, timeout time.Duration, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		base:   base{timeout: timeout, logger: logger.With("component", "handler.PostHandler")},
		posts:  posts,
		users:  users,
		ranker: ranker,
	}
}

// GetPopularPosts handles GET /posts/popular?limit=N&timeWindow=day|week|month|all
func (h *PostHandler) GetPopularPosts(c *gin.Context) {
	limit := queryInt(c, "limit", defaultPopularLimit)
	window, ok := ranking.ParseTimeWindow(c.Query("timeWindow"))
	if !ok {
		h.logger.Warn("unknown time window, using all", "timeWindow", c.Query("timeWindow"))
	}

	ctx, cancel := h.query(c)
	defer cancel()

	ranked, err := h.ranker.RankPopularPosts(ctx, window, limit)
	if err != nil {
		h.fail(c, err, "Post")
		return
	}

	refs := lo.Map(ranked, func(_ model.RankedPost, i int) *model.Post { return &ranked[i].Post })
	if err := attachAuthors(ctx, h.users, refs); err != nil {
		h.fail(c, err, "Post")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(ranked),
		"timeWindow": window,
		"data":       ranked,
	})
}

// GetAllPosts handles GET /posts?limit=N&page=P
func (h *PostHandler) GetAllPosts(c *gin.Context) {
	limit := min(queryInt(c, "limit", defaultPageSize), maxPageSize)
	page := queryInt(c, "page", 1)

	ctx, cancel := h.query(c)
	defer cancel()

	posts, err := h.posts.FindPosts(ctx, store.PostFilter{
		SortNewest: true,
		Skip:       pageSkip(page, limit),
		Limit:      int64(limit),
	})
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	total, err := h.posts.CountPosts(ctx, store.PostFilter{})
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	if err := attachAuthors(ctx, h.users, postRefs(posts)); err != nil {
		h.fail(c, err, "Post")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(posts),
		"total":   total,
		"data":    posts,
	})
}

// pageSkip returns how many posts precede page. Pages beyond what int64 can
// address skip everything.
func pageSkip(page, limit int) int64 {
	before := int64(page - 1)
	if before > math.MaxInt64/int64(limit) {
		return math.MaxInt64
	}
	return before * int64(limit)
}

// GetPostsByCategory handles GET /posts/category/:category
func (h *PostHandler) GetPostsByCategory(c *gin.Context) {
	category, ok := model.ParseCategory(c.Param("category"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid category"})
		return
	}
	h.listPosts(c, store.PostFilter{Category: category, SortNewest: true})
}

// GetUserPosts handles GET /posts/user/:userId
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	userID, err := store.ParseID(c.Param("userId"))
	if err != nil {
		h.fail(c, err, "User")
		return
	}
	h.listPosts(c, store.PostFilter{Authors: []primitive.ObjectID{userID}, SortNewest: true})
}

func (h *PostHandler) listPosts(c *gin.Context, f store.PostFilter) {
	ctx, cancel := h.query(c)
	defer cancel()

	posts, err := h.posts.FindPosts(ctx, f)
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	if err := attachAuthors(ctx, h.users, postRefs(posts)); err != nil {
		h.fail(c, err, "Post")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(posts),
		"data":    posts,
	})
}

// GetPostByID handles GET /posts/:id
func (h *PostHandler) GetPostByID(c *gin.Context) {
	id, err := store.ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err, "Post")
		return
	}

	ctx, cancel := h.query(c)
	defer cancel()

	post, err := h.posts.FindPostByID(ctx, id)
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	if err := attachAuthors(ctx, h.users, []*model.Post{post}); err != nil {
		h.fail(c, err, "Post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": post})
}

type createPostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Language string   `json:"language"`
	Images   []string `json:"images"`
}

var errMissingFields = errors.New("title and content are required")

func (r *createPostRequest) post(author primitive.ObjectID) (*model.Post, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" || r.Content == "" {
		return nil, errMissingFields
	}
	category, ok := model.ParseCategory(r.Category)
	if !ok {
		return nil, errors.New("invalid category")
	}
	language := r.Language
	if language == "" {
		language = defaultLanguage
	}
	return &model.Post{
		User:     author,
		Title:    title,
		Content:  r.Content,
		Category: category,
		Language: language,
		Images:   r.Images,
	}, nil
}

// CreatePost handles POST /posts
func (h *PostHandler) CreatePost(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	post, err := req.post(user.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ctx, cancel := h.query(c)
	defer cancel()

	if err := h.posts.CreatePost(ctx, post); err != nil {
		h.fail(c, err, "Post")
		return
	}
	post.Author = user.AsAuthor()
	middleware.MarkCategory(c, post.Category)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": post})
}

type updatePostRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Category *string `json:"category"`
	Language *string `json:"language"`
}

// UpdatePost handles PUT /posts/:id. Only the author may edit a post.
func (h *PostHandler) UpdatePost(c *gin.Context) {
	post, ok := h.ownedPost(c, "update")
	if !ok {
		return
	}

	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	update := store.PostUpdate{Content: req.Content, Language: req.Language}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Title is required"})
			return
		}
		update.Title = &title
	}
	if req.Category != nil {
		category, ok := model.ParseCategory(*req.Category)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid category"})
			return
		}
		update.Category = &category
	}

	ctx, cancel := h.query(c)
	defer cancel()

	updated, err := h.posts.UpdatePost(ctx, post.ID, update)
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	middleware.MarkCategory(c, post.Category)
	middleware.MarkCategory(c, updated.Category)

	if user, ok := middleware.UserFrom(c); ok {
		updated.Author = user.AsAuthor()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": updated})
}

// DeletePost handles DELETE /posts/:id. Only the author may delete a post.
func (h *PostHandler) DeletePost(c *gin.Context) {
	post, ok := h.ownedPost(c, "delete")
	if !ok {
		return
	}

	ctx, cancel := h.query(c)
	defer cancel()

	if err := h.posts.DeletePost(ctx, post.ID); err != nil {
		h.fail(c, err, "Post")
		return
	}
	middleware.MarkCategory(c, post.Category)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post removed"})
}

// ownedPost loads the post named by :id and checks the caller wrote it. It
// writes the error response itself when ok is false.
func (h *PostHandler) ownedPost(c *gin.Context, action string) (*model.Post, bool) {
	user, _ := middleware.UserFrom(c)

	id, err := store.ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err, "Post")
		return nil, false
	}

	ctx, cancel := h.query(c)
	defer cancel()

	post, err := h.posts.FindPostByID(ctx, id)
	if err != nil {
		h.fail(c, err, "Post")
		return nil, false
	}
	if post.User != user.ID {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authorized to " + action + " this post"})
		return nil, false
	}
	return post, true
}

type commentRequest struct {
	Text string `json:"text"`
}

// AddComment handles POST /posts/:id/comments. New comments go first.
func (h *PostHandler) AddComment(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	id, err := store.ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err, "Post")
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Comment text is required"})
		return
	}

	ctx, cancel := h.query(c)
	defer cancel()

	post, err := h.posts.AddComment(ctx, id, model.Comment{
		ID:           primitive.NewObjectID(),
		User:         user.ID,
		Text:         req.Text,
		Name:         user.Name,
		ProfileImage: user.ProfileImage,
		Date:         time.Now().UTC(),
	})
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	middleware.MarkCategory(c, post.Category)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": post.Comments})
}

// DeleteComment handles DELETE /posts/:id/comments/:commentId. Only the
// comment's author may remove it.
func (h *PostHandler) DeleteComment(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	id, err := store.ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	commentID, err := store.ParseID(c.Param("commentId"))
	if err != nil {
		h.fail(c, err, "Comment")
		return
	}

	ctx, cancel := h.query(c)
	defer cancel()

	post, err := h.posts.FindPostByID(ctx, id)
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	comment, found := lo.Find(post.Comments, func(cm model.Comment) bool { return cm.ID == commentID })
	if !found {
		h.fail(c, store.ErrNotFound, "Comment")
		return
	}
	if comment.User != user.ID {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authorized to delete this comment"})
		return
	}

	updated, err := h.posts.RemoveComment(ctx, id, commentID)
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	middleware.MarkCategory(c, updated.Category)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": updated.Comments, "message": "Comment removed"})
}

// LikePost handles PUT /posts/:id/like, toggling the caller's like.
func (h *PostHandler) LikePost(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	id, err := store.ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err, "Post")
		return
	}

	ctx, cancel := h.query(c)
	defer cancel()

	post, err := h.posts.ToggleLike(ctx, id, user.ID)
	if err != nil {
		h.fail(c, err, "Post")
		return
	}
	middleware.MarkCategory(c, post.Category)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": post.Likes, "liked": post.LikedBy(user.ID)})
}
