package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/videonotes-backend/internal/handlers"
	"github.com/yungbote/videonotes-backend/internal/middleware"
)

type RouterConfig struct {
	PipelineHandler *handlers.PipelineHandler
	NotesHandler    *handlers.NotesHandler
	ChatHandler     *handlers.ChatHandler
	RequestLog      *middleware.RequestLogMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	if cfg.RequestLog != nil {
		router.Use(cfg.RequestLog.Handle())
	}

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/videos/:videoID/process", cfg.PipelineHandler.ProcessVideo)
		api.GET("/videos/:videoID/notes", cfg.NotesHandler.ListNotes)
		api.GET("/videos/:videoID/notes/:format", cfg.NotesHandler.GetNote)
		api.GET("/videos/:videoID/analysis", cfg.NotesHandler.GetAnalysis)
		api.POST("/chat", cfg.ChatHandler.Chat)
	}

	return router
}
