package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Documents *DocumentHandler
	Chat      *ChatHandler
	Memory    *MemoryHandler
	Graph     *GraphHandler
	Health    *HealthHandler
	JWTSecret []byte
	AskWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)
	api.GET("/health", deps.Health.Health)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/auth/me", deps.Auth.Me)

	authGroup.POST("/documents/upload", deps.Documents.Upload)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	chatGroup := authGroup.Group("")
	chatGroup.Use(middleware.RateLimit(deps.AskWindow))
	chatGroup.POST("/chat/ask", deps.Chat.Ask)
	chatGroup.POST("/chat/ask/stream", deps.Chat.AskStream)

	authGroup.GET("/memory", deps.Memory.Get)
	authGroup.GET("/memory/insights", deps.Memory.Insights)
	authGroup.DELETE("/memory/:target", deps.Memory.Clear)

	authGroup.GET("/graph/stats", deps.Graph.Stats)
	authGroup.GET("/graph/full", deps.Graph.Full)
	authGroup.GET("/graph/entities", deps.Graph.Entities)
	authGroup.GET("/graph/neighbors/:id", deps.Graph.Entity)
}
