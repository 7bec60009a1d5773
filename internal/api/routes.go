package api

import (
	"net/http"

	"polysynergy/file-manager/internal/service"

	"github.com/gin-gonic/gin"
)

// Services bundles what the routes dispatch to. Chat is optional.
type Services struct {
	Files          *service.FileManager
	Refresher      *service.URLRefresher
	Chat           *service.ChatService
	MaxUploadBytes int64
	Metrics        http.Handler
}

func SetupRoutes(router *gin.Engine, jwtSecret string, svc Services) {
	fileHandler := NewFileHandler(svc.Files, svc.MaxUploadBytes)
	urlHandler := NewURLHandler(svc.Refresher, svc.Files)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if svc.Metrics != nil {
		router.GET("/metrics", gin.WrapH(svc.Metrics))
	}

	apiV1 := router.Group("/api/v1")
	project := apiV1.Group("/tenants/:tenantId/projects/:projectId")
	project.Use(AuthMiddleware(jwtSecret))
	{
		files := project.Group("/files")
		{
			files.GET("", fileHandler.List)
			files.POST("/upload", fileHandler.Upload)
			files.POST("/upload-multiple", fileHandler.UploadMultiple)
			files.DELETE("/*path", fileHandler.Delete)
			files.POST("/batch-delete", fileHandler.BatchDelete)
			files.POST("/directory", fileHandler.CreateDirectory)
			files.PUT("/move", fileHandler.Move)
			files.GET("/metadata/*path", fileHandler.Metadata)
			files.GET("/search", fileHandler.Search)
			files.GET("/health", fileHandler.Health)
		}

		project.POST("/urls/refresh", urlHandler.Refresh)

		if svc.Chat != nil {
			chatHandler := NewChatHandler(svc.Chat)
			project.GET("/chat/sessions/:sessionId/messages", chatHandler.History)
			project.POST("/chat/sessions/:sessionId/messages", chatHandler.Append)
		}
	}
}
