package api

import (
	"github.com/gin-gonic/gin"

	"phFolio/internal/api/middleware"
	"phFolio/internal/auth"
)

// Handlers 汇总需要注册的处理器。
type Handlers struct {
	Auth   *AuthHandler
	Page   *PageHandler
	Public *PublicHandler
	Ws     *WsHandler
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, authService *auth.AuthService, h Handlers) {
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		if h.Ws != nil {
			v1.GET("/ws", h.Ws.HandleConnection)
		}

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/refresh", h.Auth.Refresh)
			authGroup.POST("/logout", authMiddleware, h.Auth.Logout)
		}

		pageGroup := v1.Group("/page")
		pageGroup.Use(authMiddleware)
		{
			pageGroup.GET("", h.Page.GetPage)
			pageGroup.PUT("", h.Page.SavePage)
			pageGroup.POST("/blocks", h.Page.CreateBlock)
			pageGroup.GET("/snapshot-link", h.Page.GetSnapshotLink)
		}

		v1.GET("/editor/config", authMiddleware, h.Page.GetEditorConfig)
		v1.GET("/public/:slug", h.Public.GetPage)
	}
}
