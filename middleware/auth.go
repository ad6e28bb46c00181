package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stories-service/auth"
	"stories-service/model"
	"stories-service/store"
)

const (
	userKey      = "stories.user"
	authErrorKey = "stories.authError"
	verifiedKey  = "stories.tokenVerified"
)

type TokenVerifier interface {
	UserID(token string) (string, error)
}

type UserFinder interface {
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
}

// Identify resolves the bearer token, if any, to a user and stores it on the
// context. Requests with a missing or bad token continue anonymously;
// RequireUser decides whether that is acceptable. A valid token whose user
// cannot be loaded still marks the request Authenticated.
func Identify(tokens TokenVerifier, users UserFinder, timeout time.Duration, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "middleware.Identify")

	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		uid, err := tokens.UserID(token)
		if err != nil {
			c.Set(authErrorKey, err)
			c.Next()
			return
		}
		// the caller proved an identity even if loading it fails below
		c.Set(verifiedKey, true)

		user, err := loadUser(c.Request.Context(), users, uid, timeout)
		if err != nil {
			if isStorageError(err) {
				logger.Error("failed to load token user", "error", err)
			}
			c.Set(authErrorKey, err)
			c.Next()
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func loadUser(ctx context.Context, users UserFinder, uid string, timeout time.Duration) (*model.User, error) {
	id, err := store.ParseID(uid)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return users.FindUserByID(ctx, id)
}

func isStorageError(err error) bool {
	return !errors.Is(err, auth.ErrInvalidToken) &&
		!errors.Is(err, auth.ErrMissingToken) &&
		!errors.Is(err, store.ErrInvalidID) &&
		!errors.Is(err, store.ErrNotFound)
}

// UserFrom returns the user Identify attached to the request.
func UserFrom(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

// Authenticated reports whether the request carried a valid token, whether or
// not its user could be loaded. Such requests must not share cached responses.
func Authenticated(c *gin.Context) bool {
	if _, ok := UserFrom(c); ok {
		return true
	}
	return c.GetBool(verifiedKey)
}

// RequireUser rejects anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserFrom(c); ok {
			c.Next()
			return
		}

		if v, ok := c.Get(authErrorKey); ok {
			if err, _ := v.(error); err != nil && isStorageError(err) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Server error"})
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authorized to access this application"})
	}
}
