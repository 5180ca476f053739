package router

import (
	"encoding/gob"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/user/cinecircle/internal/handler"
	"github.com/user/cinecircle/internal/middleware"
	"github.com/user/cinecircle/internal/model"
	"go.uber.org/zap"
)

// NewEngine 组装 Gin 引擎：全局中间件 + 路由
func NewEngine(h *handler.Handler, logger *zap.Logger) *gin.Engine {
	// 注册 Session 模型
	gob.Register(model.SessionUser{})

	cfg := h.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// 启用 gzip，默认压缩级别
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 设置 Session 中间件
	store := cookie.NewStore([]byte(cfg.AppSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 天
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("cinecircle", store))

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Security())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// 上传的头像
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	RegisterRoutes(r, h)
	return r
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	secret := h.Config.AppSecret
	api := r.Group("/api")

	// ==================== 认证 ====================
	auth := api.Group("/auth")
	if rpm := h.Config.AuthRatePerMinute; rpm > 0 {
		auth.Use(middleware.RateLimit(rpm, 5))
	}
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", middleware.OptionalAuth(secret), h.Logout)
		auth.POST("/reset", h.RequestPasswordReset)
		auth.POST("/reset/confirm", h.ConfirmPasswordReset)
	}

	// ==================== 公开接口 ====================
	public := api.Group("")
	public.Use(middleware.OptionalAuth(secret))
	{
		public.GET("/users/:id", h.PublicProfile)
		public.GET("/movies/search", h.SearchMovies)
		public.GET("/movies/:id", h.MovieDetail)
		public.GET("/movies/:id/reviews", h.MovieReviews)
	}

	// ==================== 需要登录 ====================
	private := api.Group("")
	private.Use(middleware.RequireAuth(secret))
	{
		account := private.Group("/account")
		account.GET("/me", h.Me)
		account.PUT("/display-name", h.UpdateDisplayName)
		account.PUT("/email", h.UpdateEmail)
		account.PUT("/password", h.UpdatePassword)
		account.GET("/bio", h.GetBio)
		account.PUT("/bio", h.UpdateBio)
		account.PUT("/visibility", h.UpdateVisibility)
		account.POST("/photo", h.UploadPhoto)
		account.DELETE("/photo", h.RemovePhoto)
		account.DELETE("", h.DeleteAccount)

		private.GET("/lists/:type", h.GetList)
		private.POST("/lists/:type", h.AddToList)
		private.GET("/lists/:type/:movieId", h.IsInList)
		private.DELETE("/lists/:type/:movieId", h.RemoveFromList)
		private.GET("/stats", h.Stats)
		private.GET("/collection", h.Collection)

		friends := private.Group("/friends")
		friends.GET("", h.FriendsOverview)
		friends.GET("/search", h.SearchUsers)
		friends.POST("/requests", h.SendFriendRequest)
		friends.POST("/requests/:id/accept", h.AcceptFriendRequest)
		friends.POST("/requests/:id/decline", h.DeclineFriendRequest)
		friends.DELETE("/requests/:id", h.RevokeFriendRequest)
		friends.DELETE("/:id", h.RemoveFriend)

		recs := private.Group("/recommendations")
		recs.POST("", h.Recommend)
		recs.GET("/received", h.ReceivedRecommendations)
		recs.GET("/sent", h.SentRecommendations)
		recs.POST("/:id/respond", h.RespondRecommendation)
		recs.POST("/:id/read", h.MarkRecommendationRead)
		recs.DELETE("/:id", h.DeleteRecommendation)
	}
}
