package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/filmfinder/internal/handler"
	"github.com/user/filmfinder/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 认证 ====================
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", h.Throttle.Guard(), h.Login)
		auth.POST("/register", h.Throttle.Guard(), h.Register)
		auth.POST("/logout", h.Logout)
	}

	// ==================== 业务 API（需要登录）====================
	api := r.Group("/api")
	api.Use(middleware.RequireAuth(h.Config.AppSecret))
	{
		api.GET("/films", h.ListFilms)
		api.POST("/films", h.CreateFilms)
		api.DELETE("/films/:filmId", h.DeleteFilm)
		api.POST("/films/:filmId/status", h.UpdateFilmStatus)

		api.POST("/recommendations", h.GetRecommendations)

		api.GET("/preferences", h.GetPreferences)
		api.PUT("/preferences", h.UpdatePreferences)
	}
}
