package api

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stories-service/cache"
	"stories-service/config"
	"stories-service/handler"
	"stories-service/middleware"
	"stories-service/ratelimit"
)

// BasePath is where the cached routes live. Post and auth routes are also
// served without it.
const BasePath = "/api"

type Deps struct {
	Config *config.Config
	Logger *slog.Logger

	Posts  *handler.PostHandler
	Users  *handler.UserHandler
	Health *handler.HealthHandler

	Cache   *cache.Store
	Peers   middleware.Broadcaster
	Limiter ratelimit.Limiter
	Tokens  middleware.TokenVerifier
	Lookup  middleware.UserFinder
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger, d.Config.SlowResponse))
	r.Use(middleware.PrometheusMiddleware(config.ServiceName))
	r.Use(cors.New(corsConfig(d.Config)))

	// Health check routes
	r.GET("/", d.Health.Health)
	r.GET("/health", d.Health.Health)
	r.GET("/ready", d.Health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rules := cache.DefaultRules(BasePath)
	invalidate := middleware.InvalidatePosts(d.Cache, BasePath, d.Peers, d.Logger)
	identify := middleware.Identify(d.Tokens, d.Lookup, d.Config.QueryTimeout, d.Logger)

	api := r.Group(BasePath)
	if d.Limiter != nil {
		api.Use(middleware.RateLimit(d.Limiter, d.Logger))
	}
	api.Use(identify, middleware.CacheControl(rules), middleware.ResponseCache(d.Cache, rules, d.Logger))
	{
		mountPosts(api.Group("/posts", invalidate), d.Posts)
		mountAuth(api.Group("/auth"), d.Users)
		api.GET("/map-data", d.Users.GetMapData)
	}

	plain := r.Group("", identify, middleware.CacheControl(rules))
	{
		mountPosts(plain.Group("/posts", invalidate), d.Posts)
		mountAuth(plain.Group("/auth"), d.Users)
	}

	return r
}

func mountPosts(g *gin.RouterGroup, h *handler.PostHandler) {
	auth := middleware.RequireUser()

	g.GET("/popular", h.GetPopularPosts)
	g.GET("", h.GetAllPosts)
	g.GET("/category/:category", h.GetPostsByCategory)
	g.GET("/user/:userId", h.GetUserPosts)
	g.GET("/:id", h.GetPostByID)
	g.POST("", auth, h.CreatePost)
	g.PUT("/:id", auth, h.UpdatePost)
	g.DELETE("/:id", auth, h.DeletePost)
	g.POST("/:id/comments", auth, h.AddComment)
	g.DELETE("/:id/comments/:commentId", auth, h.DeleteComment)
	g.PUT("/:id/like", auth, h.LikePost)
}

func mountAuth(g *gin.RouterGroup, h *handler.UserHandler) {
	g.GET("/stats", h.GetUserStats)
	g.GET("/me", middleware.RequireUser(), h.GetCurrentUser)
}

// corsConfig allows any origin outside production.
func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	switch {
	case cfg.Production() && len(cfg.AllowedOrigins) > 0:
		c.AllowOrigins = cfg.AllowedOrigins
	case cfg.Production():
		c.AllowOriginFunc = func(string) bool { return false }
	default:
		c.AllowOriginFunc = func(string) bool { return true }
	}
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	c.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	c.ExposeHeaders = []string{"X-Cache", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"}
	c.AllowCredentials = true
	return c
}
